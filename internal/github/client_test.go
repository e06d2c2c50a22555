package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v57/github"
)

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		name      string
		wantError bool
	}{
		{in: "https://github.com/o/r", owner: "o", name: "r"},
		{in: "https://github.com/o/r.git", owner: "o", name: "r"},
		{in: "https://github.com/o/r/", owner: "o", name: "r"},
		{in: "o/r", owner: "o", name: "r"},
		{in: "https://github.com/o", wantError: true},
		{in: "https://github.com/o/r/tree/main", wantError: true},
		{in: "", wantError: true},
	}
	for _, tt := range tests {
		owner, name, err := ParseRepositoryURL(tt.in)
		if tt.wantError {
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("ParseRepositoryURL(%q) expected ErrInvalidURL, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || owner != tt.owner || name != tt.name {
			t.Errorf("ParseRepositoryURL(%q) = %q, %q, %v", tt.in, owner, name, err)
		}
	}
}

func testClient(t *testing.T, status int, body string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c := &Client{client: github.NewClient(nil)}
	c.client.BaseURL, _ = c.client.BaseURL.Parse(server.URL + "/")
	return c
}

func TestGetRepository(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantURL   string
		notFound  bool
		wantError bool
	}{
		{name: "exists", status: http.StatusOK, body: `{"name":"R","full_name":"O/R","owner":{"login":"O"},"html_url":"https://github.com/O/R"}`, wantURL: "https://github.com/O/R"},
		{name: "missing", status: http.StatusNotFound, body: `{"message":"Not Found"}`, notFound: true, wantError: true},
		{name: "server error", status: http.StatusBadGateway, body: `{"message":"bad gateway"}`, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := testClient(t, tt.status, tt.body).GetRepository(context.Background(), "o", "r")
			if tt.wantError != (err != nil) {
				t.Fatalf("GetRepository() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.notFound != errors.Is(err, ErrRepositoryNotFound) {
				t.Fatalf("GetRepository() error = %v, notFound %v", err, tt.notFound)
			}
			if err != nil {
				return
			}
			if info.URL != tt.wantURL || info.Owner != "O" || info.Name != "R" {
				t.Fatalf("unexpected info: %+v", info)
			}
		})
	}
}

func TestGetRepository_Details(t *testing.T) {
	c := testClient(t, http.StatusOK, `{"full_name":"o/r","description":"demo","private":true,"html_url":"https://github.com/o/r"}`)
	info, err := c.GetRepository(context.Background(), "o", "r")
	if err != nil {
		t.Fatalf("GetRepository() unexpected error: %v", err)
	}
	if info.FullName != "o/r" || info.Description != "demo" || !info.Private {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Owner != "o" || info.Name != "r" {
		t.Fatalf("owner and name should fall back to the request: %+v", info)
	}
}

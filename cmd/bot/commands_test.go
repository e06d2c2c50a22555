package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/user/gitcord/internal/manage"
	"github.com/user/gitcord/internal/storage"
)

func TestParseActionsTable(t *testing.T) {
	tests := []struct {
		name    string
		enable  []string
		disable []string
		want    map[string]bool
		wantErr bool
	}{
		{name: "empty", want: map[string]bool{}},
		{name: "enable and disable", enable: []string{"opened", " comments "}, disable: []string{"closed"},
			want: map[string]bool{"opened": true, "comments": true, "closed": false}},
		{name: "blank entries ignored", enable: []string{""}, disable: []string{" "}, want: map[string]bool{}},
		{name: "conflict", enable: []string{"opened"}, disable: []string{"opened"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseActions(tc.enable, tc.disable)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("parseActions = %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("parseActions[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestCommandTreeWiring(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"repo", "add"}, {"repo", "remove"}, {"repo", "list"},
		{"branch", "add"}, {"branch", "remove"}, {"branch", "list"},
		{"event", "set"}, {"event", "clear"}, {"event", "list"},
		{"servers", "list"}, {"servers", "counts"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("Find(%v): %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("Find(%v) resolved to %q", path, cmd.Name())
		}
	}
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Fatal("expected persistent --config flag")
	}
	if repoCmd.PersistentFlags().Lookup("server") == nil {
		t.Fatal("expected --server on repo commands")
	}
}

func TestWriteRepositories(t *testing.T) {
	var buf bytes.Buffer
	repos := []storage.Repository{
		{URL: "https://github.com/o/a", ChannelID: "c1", WebhookSecret: "s"},
		{URL: "https://github.com/o/b"},
	}
	if err := writeRepositories(&buf, repos); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "c1") || !strings.Contains(lines[1], "own") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[2], "-") || !strings.Contains(lines[2], "global") {
		t.Fatalf("unexpected second row %q", lines[2])
	}
}

func TestWriteEventRoutes(t *testing.T) {
	var buf bytes.Buffer
	routes := []manage.EventRoute{
		{EventType: "issues", ChannelID: storage.ChannelDefault, Enabled: []string{"closed", "opened"}},
		{EventType: "star", ChannelID: "c2", Explicit: true},
	}
	if err := writeEventRoutes(&buf, routes); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "closed,opened") {
		t.Fatalf("expected joined actions, got %q", out)
	}
	if !strings.Contains(out, "true") {
		t.Fatalf("expected explicit flag, got %q", out)
	}
}

package branch

import (
	"testing"

	"github.com/user/gitcord/internal/storage"
)

var sampleBranches = []string{
	"main", "develop", "feature/new-ui", "feature/a/b", "release/v2", "release", "releases/v1", "hotfix-1", "Main",
}

func TestMatches(t *testing.T) {
	cases := []struct {
		branch  string
		pattern string
		want    bool
	}{
		{"main", "*", true},
		{"main", "main", true},
		{"Main", "main", false},
		{"main-2", "main", false},
		{"feature/new-ui", "feature/*", true},
		{"feature/a/b", "feature/*", true},
		{"feature", "feature/*", false},
		{"featurex/a", "feature/*", false},
		{"release/v2", "!release/*", false},
		{"main", "!release/*", true},
		{"main", "!main", false},
		{"develop", "!main", true},
		{"anything", "!*", false},
		{"hotfix", "*fix*", false},
		{"feature/x/docs", "feature/*/docs", false},
		{"a", "*/*", false},
		{"main", "", false},
	}
	for _, c := range cases {
		if got := Matches(c.branch, c.pattern); got != c.want {
			t.Fatalf("Matches(%q, %q) = %v, want %v", c.branch, c.pattern, got, c.want)
		}
	}
}

func TestMatches_Properties(t *testing.T) {
	patterns := []string{"main", "develop", "feature/*", "release/*", "release", "*"}
	for _, b := range sampleBranches {
		if !Matches(b, "*") {
			t.Fatalf("%q should match *", b)
		}
		if !Matches(b, b) {
			t.Fatalf("%q should match itself", b)
		}
		for _, p := range patterns {
			if p == "*" {
				continue
			}
			if Matches(b, "!"+p) != !Matches(b, p) {
				t.Fatalf("negation parity broken for branch %q pattern %q", b, p)
			}
			if Matches(b, p) != Matches(b, p) {
				t.Fatalf("non-deterministic result for %q %q", b, p)
			}
		}
	}
}

func TestIsValidPattern(t *testing.T) {
	cases := []struct {
		pattern string
		want    bool
	}{
		{"*", true},
		{"main", true},
		{"release/*", true},
		{"!release/*", true},
		{"!main", true},
		{"v1.2_rc-3", true},
		{"!*", false},
		{"feature/*/docs", false},
		{"*fix*", false},
		{"/*", false},
		{"!", false},
		{"", false},
		{"bad branch", false},
		{"!!main", false},
		{"feat*", false},
	}
	for _, c := range cases {
		if got := IsValidPattern(c.pattern); got != c.want {
			t.Fatalf("IsValidPattern(%q) = %v, want %v", c.pattern, got, c.want)
		}
	}
}

func TestFindMatching(t *testing.T) {
	tracked := []storage.TrackedBranch{
		{ID: 1, Pattern: "*"},
		{ID: 2, Pattern: "feature/*"},
		{ID: 3, Pattern: "!release/*"},
		{ID: 4, Pattern: "*fix*"},
		{ID: 5, Pattern: "main"},
	}

	got := FindMatching(tracked, "feature/new-ui")
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %+v", got)
	}
	for i, id := range []int64{1, 2, 3} {
		if got[i].ID != id {
			t.Fatalf("match %d = %d, want %d", i, got[i].ID, id)
		}
	}

	if got := FindMatching(tracked, "release/v2"); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected matches for release/v2: %+v", got)
	}
	if got := FindMatching(nil, "main"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestDescribe(t *testing.T) {
	cases := map[string]string{
		"*":          "All branches",
		"release/*":  `Branches starting with "release/"`,
		"main":       `Branch "main"`,
		"!main":      `All branches except branch "main"`,
		"!release/*": `All branches except branches starting with "release/"`,
	}
	for pattern, want := range cases {
		if got := Describe(pattern); got != want {
			t.Fatalf("Describe(%q) = %q, want %q", pattern, got, want)
		}
	}
}

// Every pattern the validator accepts must be understood by the matcher and
// the descriptor, negations included.
func TestValidatorMatcherDescriptorParity(t *testing.T) {
	patterns := []string{"*", "main", "release/*", "!main", "!release/*", "!*", "feature/*/docs", "*fix*"}
	for _, p := range patterns {
		valid := IsValidPattern(p)
		matchesSomething := false
		for _, b := range sampleBranches {
			if Matches(b, p) {
				matchesSomething = true
			}
		}
		if !valid && matchesSomething {
			t.Fatalf("invalid pattern %q matched a branch", p)
		}
		if valid && Describe(p) == "" {
			t.Fatalf("valid pattern %q has no description", p)
		}
		if valid && !matchesSomething && p != "main" {
			t.Fatalf("valid pattern %q matched none of the sample branches", p)
		}
	}
}

// Package branch matches branch names against tracked branch patterns.
//
// Four pattern shapes are supported: "*" (every branch), an exact name,
// a "prefix/*" pattern and a "!" negation of one of the first three.
// Any other use of "*" is storable but never matches.
package branch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/user/gitcord/internal/storage"
)

const (
	wildcard     = "*"
	prefixSuffix = "/*"
	negation     = "!"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9\-_/.]+$`)

// Matches reports whether branchName satisfies pattern.
func Matches(branchName, pattern string) bool {
	if inner, ok := strings.CutPrefix(pattern, negation); ok {
		// "!*" would silence every branch; the validator rejects it and it never matches here.
		if inner == wildcard || inner == "" || strings.HasPrefix(inner, negation) {
			return false
		}
		if !isMatchable(inner) {
			return false
		}
		return !matchPositive(branchName, inner)
	}
	return matchPositive(branchName, pattern)
}

func matchPositive(branchName, pattern string) bool {
	switch {
	case pattern == wildcard:
		return true
	case !strings.Contains(pattern, wildcard):
		return pattern != "" && branchName == pattern
	case isPrefixPattern(pattern):
		prefix := strings.TrimSuffix(pattern, prefixSuffix)
		return strings.HasPrefix(branchName, prefix+"/")
	default:
		return false
	}
}

// isMatchable reports whether a non-negated pattern has one of the three
// shapes the matcher understands.
func isMatchable(pattern string) bool {
	return pattern == wildcard || !strings.Contains(pattern, wildcard) || isPrefixPattern(pattern)
}

func isPrefixPattern(pattern string) bool {
	if !strings.HasSuffix(pattern, prefixSuffix) {
		return false
	}
	prefix := strings.TrimSuffix(pattern, prefixSuffix)
	return prefix != "" && !strings.Contains(prefix, wildcard)
}

// FindMatching returns the tracked branches whose pattern matches branchName,
// in their original order.
func FindMatching(tracked []storage.TrackedBranch, branchName string) []storage.TrackedBranch {
	var matched []storage.TrackedBranch
	for _, tb := range tracked {
		if Matches(branchName, tb.Pattern) {
			matched = append(matched, tb)
		}
	}
	return matched
}

// IsValidPattern reports whether pattern may be stored as a tracked branch.
func IsValidPattern(pattern string) bool {
	inner, negated := strings.CutPrefix(pattern, negation)
	if negated && inner == wildcard {
		return false
	}
	return isValidPositive(inner)
}

func isValidPositive(pattern string) bool {
	switch {
	case pattern == wildcard:
		return true
	case !strings.Contains(pattern, wildcard):
		return namePattern.MatchString(pattern)
	case isPrefixPattern(pattern):
		return namePattern.MatchString(strings.TrimSuffix(pattern, prefixSuffix))
	default:
		return false
	}
}

// Describe returns a human-readable summary of pattern.
func Describe(pattern string) string {
	if inner, ok := strings.CutPrefix(pattern, negation); ok {
		return "All branches except " + describePositive(inner, false)
	}
	return describePositive(pattern, true)
}

func describePositive(pattern string, capitalized bool) string {
	switch {
	case pattern == wildcard:
		if capitalized {
			return "All branches"
		}
		return "all branches"
	case isPrefixPattern(pattern):
		word := "Branches"
		if !capitalized {
			word = "branches"
		}
		return fmt.Sprintf("%s starting with %q", word, strings.TrimSuffix(pattern, wildcard))
	default:
		word := "Branch"
		if !capitalized {
			word = "branch"
		}
		return fmt.Sprintf("%s %q", word, pattern)
	}
}

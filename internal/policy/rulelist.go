// Package policy implements the glob-suffix name matcher, value checks,
// TZ sanity check, and built-in default tables that decide whether an
// environment variable is deleted, preserved, or checked — the Go
// analog of matches_env_list / matches_env_check / matches_env_keep /
// tz_is_sane in sudo's plugins/sudoers/env.c.
package policy

import "strings"

// RuleList is an ordered sequence of glob-suffix patterns. A pattern is
// a literal name, optionally ending in '*' to make it a prefix match.
// Patterns are matched in order; List preserves insertion order so the
// first member that matches wins.
type RuleList []string

// Matches reports whether entry (a NAME=VALUE or bare NAME string)
// matches some pattern in l, and whether that match was a "full
// match" — the matching pattern's consumed length extended past the
// NAME= separator, i.e. it also matched into the value. Patterns are
// tried in order; the first to match determines both return values.
func (l RuleList) Matches(entry string) (matched, fullMatch bool) {
	sep := strings.IndexByte(entry, '=')
	if sep < 0 {
		sep = len(entry)
	}
	for _, pattern := range l {
		n := len(pattern)
		if n == 0 {
			continue
		}
		wild := pattern[n-1] == '*'
		if wild {
			n--
		}
		if n > len(entry) {
			continue
		}
		if entry[:n] != pattern[:n] {
			continue
		}
		if !(wild || n == sep || n == len(entry)) {
			continue
		}
		return true, n > sep+1
	}
	return false, false
}

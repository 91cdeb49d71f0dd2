package policy

import (
	"strings"
	"unicode"
)

// bashFunctionPrefix is the value prefix (three bytes past the '=')
// that marks a bash-function disguise: "() ", including the trailing
// space. This mirrors env.c's strncmp(cp, "=() ", 3) check exactly —
// the constant is correct as-is and must not be "fixed" to 4.
const bashFunctionPrefix = "() "

// Lists is the RuleList triple consulted by should_delete/should_keep:
// the configured env_delete, env_check, and env_keep lists (built-in
// defaults plus any administrator overrides already merged in).
type Lists struct {
	Delete RuleList
	Check  RuleList
	Keep   RuleList
}

// Matcher evaluates Lists against entries for a particular invocation,
// given the handful of mode/identity inputs should_keep and
// matches_env_check need (shell mode for the SHELL exemption, the
// zoneinfo root for tz_is_sane).
type Matcher struct {
	Lists Lists

	// ShellMode is true when running "sudo -s"; it makes should_keep
	// unconditionally preserve SHELL.
	ShellMode bool

	// ZoneinfoDir is the platform zoneinfo root (e.g.
	// /usr/share/zoneinfo) consulted by tz_is_sane.
	ZoneinfoDir string
}

// keepResult mirrors matches_env_check's three-way return (allow, deny,
// no_match).
type keepResult int

const (
	noMatch keepResult = iota
	allow
	deny
)

func isBashFunction(value string) bool {
	return strings.HasPrefix(value, bashFunctionPrefix)
}

// value extracts the VALUE part of a NAME=VALUE entry, or "" if there
// is no '='.
func value(entry string) string {
	if i := strings.IndexByte(entry, '='); i >= 0 {
		return entry[i+1:]
	}
	return ""
}

func name(entry string) string {
	if i := strings.IndexByte(entry, '='); i >= 0 {
		return entry[:i]
	}
	return entry
}

// matchesCheck applies env_check: if entry's name matches some pattern
// in Check, the result is allow/deny based on the TZ sanity check (for
// TZ) or the absence of '/' and '%' in the value (for everything
// else); otherwise no_match.
func (m Matcher) matchesCheck(entry string) (res keepResult, fullMatch bool) {
	matched, full := m.Lists.Check.Matches(entry)
	if !matched {
		return noMatch, false
	}
	if name(entry) == "TZ" {
		if tzIsSane(value(entry), m.ZoneinfoDir) {
			return allow, full
		}
		return deny, full
	}
	v := value(entry)
	if strings.ContainsAny(v, "/%") {
		return deny, full
	}
	return allow, full
}

// matchesKeep applies env_keep, plus the "sudo -s" SHELL exemption.
func (m Matcher) matchesKeep(entry string) (matched, fullMatch bool) {
	if m.ShellMode && name(entry) == "SHELL" {
		return true, true
	}
	return m.Lists.Keep.Matches(entry)
}

// ShouldDelete reports whether entry must be stripped from the
// outgoing environment: bash-function disguises are always deleted;
// otherwise entries in env_delete are deleted, as are entries denied
// by env_check.
func (m Matcher) ShouldDelete(entry string) bool {
	if isBashFunction(value(entry)) {
		return true
	}
	if matched, _ := m.Lists.Delete.Matches(entry); matched {
		return true
	}
	if res, _ := m.matchesCheck(entry); res == deny {
		return true
	}
	return false
}

// ShouldKeep reports whether entry is allowed to survive a clean-slate
// rebuild: env_check decides first; if it has no opinion, env_keep is
// consulted. A keep decision reached without a full match (name-only)
// is downgraded to false if the value is a bash-function disguise, so
// a variable can't masquerade as a kept shell function to smuggle
// arbitrary code past the matcher.
func (m Matcher) ShouldKeep(entry string) bool {
	res, full := m.matchesCheck(entry)
	keep := res == allow
	if res == noMatch {
		keep, full = m.matchesKeep(entry)
	}
	if keep && !full && isBashFunction(value(entry)) {
		keep = false
	}
	return keep
}

// tzIsSane validates a TZ value the way tz_is_sane does: a leading ':'
// is stripped; a path-shaped value must live under zoneinfoDir; the
// remainder must be printable, non-whitespace, free of ".." path
// components, and shorter than the platform path limit.
func tzIsSane(tz, zoneinfoDir string) bool {
	const pathMax = 4096 // PATH_MAX on Linux; used as the platform path limit

	if strings.HasPrefix(tz, ":") {
		tz = tz[1:]
	}

	if strings.HasPrefix(tz, "/") {
		if zoneinfoDir == "" {
			return false
		}
		if !strings.HasPrefix(tz, zoneinfoDir+"/") {
			return false
		}
	}

	lastCh := byte('/')
	for i := 0; i < len(tz); i++ {
		c := tz[i]
		if c > unicode.MaxASCII || unicode.IsSpace(rune(c)) || !isPrintASCII(c) {
			return false
		}
		if lastCh == '/' && c == '.' && i+1 < len(tz) && tz[i+1] == '.' &&
			(i+2 == len(tz) || tz[i+2] == '/') {
			return false
		}
		lastCh = c
	}

	return len(tz) < pathMax
}

func isPrintASCII(c byte) bool {
	return c >= 0x20 && c < 0x7f
}

// Package hooks implements the four reentrancy-guarded shims:
// getenv/setenv/putenv/unsetenv redirected to the private EnvTable so
// that library code cannot read or mutate the host process's real
// environment during privilege elevation.
//
// Re-entry is tracked with an explicit, typed sync/atomic flag rather
// than an ad hoc mutex-guarded bool.
package hooks

import (
	"sync/atomic"

	"github.com/envguard/envguard/internal/envtable"
)

// Result is the token a shim returns to its caller: Stop means the
// shim handled the call against the private table; PassThrough means
// the caller must fall back to the real C-library implementation
// (table uninitialized, or the shim was re-entered).
type Result int

const (
	PassThrough Result = iota
	Stop
)

// Shims redirects getenv/setenv/putenv/unsetenv to table, with a
// single-flag re-entry guard (one atomic.Bool per Shims value, shared
// by all four shims; this process is single-threaded at the point the
// core runs, so one flag suffices — a thread-local flag would be
// needed if that ever changed).
//
// SudoersLocaleActive reports whether the active locale is the
// "sudoers" locale, resolved by an external collaborator; when it
// does, Getenv special-cases LANGUAGE/LANG/LC_ALL/LC_MESSAGES so
// translation lookups for policy messages don't leak the invoker's
// locale into decisions made before exec.
type Shims struct {
	table *envtable.Table

	entered atomic.Bool

	SudoersLocaleActive func() bool
	SudoersLocale       string
}

// New returns Shims with no table attached; every call passes through
// until Attach is called.
func New() *Shims {
	return &Shims{}
}

// Attach installs table as the private EnvTable the shims redirect
// to. Passing nil detaches it, reverting to pass-through.
func (s *Shims) Attach(table *envtable.Table) {
	s.table = table
}

// enter claims the re-entry guard, returning false if the table is
// unattached or a call is already in flight on this logical stack.
func (s *Shims) enter() bool {
	if s.table == nil {
		return false
	}
	return s.entered.CompareAndSwap(false, true)
}

func (s *Shims) leave() {
	s.entered.Store(false)
}

func (s *Shims) localeActive() bool {
	return s.SudoersLocaleActive != nil && s.SudoersLocaleActive()
}

// Getenv redirects a getenv(3) call. The sudoers-locale special case
// takes priority over the table lookup: under the sudoers locale,
// LANGUAGE/LANG are forced absent (so gettext falls back to the
// configured default) and LC_ALL/LC_MESSAGES return the configured
// sudoers locale string, regardless of what the table holds.
func (s *Shims) Getenv(name string) (value string, ok bool, result Result) {
	if !s.enter() {
		return "", false, PassThrough
	}
	defer s.leave()

	if s.localeActive() {
		switch name {
		case "LANGUAGE", "LANG":
			return "", false, Stop
		case "LC_ALL", "LC_MESSAGES":
			return s.SudoersLocale, true, Stop
		}
	}

	v, found := s.table.Get(name)
	return v, found, Stop
}

// Setenv redirects a setenv(3) call.
func (s *Shims) Setenv(name, value string, overwrite bool) (Result, error) {
	if !s.enter() {
		return PassThrough, nil
	}
	defer s.leave()

	if err := s.table.Set(name, value, true, overwrite); err != nil {
		return Stop, err
	}
	return Stop, nil
}

// Putenv redirects a putenv(3) call; entry must contain '='.
func (s *Shims) Putenv(entry string) (Result, error) {
	if !s.enter() {
		return PassThrough, nil
	}
	defer s.leave()

	if err := s.table.Put(entry, true, true); err != nil {
		return Stop, err
	}
	return Stop, nil
}

// Unsetenv redirects an unsetenv(3) call.
func (s *Shims) Unsetenv(name string) (Result, error) {
	if !s.enter() {
		return PassThrough, nil
	}
	defer s.leave()

	if err := s.table.Unset(name); err != nil {
		return Stop, err
	}
	return Stop, nil
}

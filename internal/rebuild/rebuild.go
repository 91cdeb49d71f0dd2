// Package rebuild implements the Rebuilder: the whole-environment
// transformation driven by invocation mode and policy, the Go analog
// of rebuild_env in sudo's plugins/sudoers/env.c.
package rebuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/envguard/envguard/internal/envtable"
	"github.com/envguard/envguard/internal/identity"
	"github.com/envguard/envguard/internal/policy"
)

// Mode carries the invocation-mode flags consumed (not owned) by the
// Rebuilder: Run, Shell, LoginShell, ResetHome.
type Mode struct {
	Run        bool
	Shell      bool
	LoginShell bool
	ResetHome  bool
}

// Policy carries the policy flags the Rebuilder consults, plus the
// matcher used to evaluate env_delete/env_check/env_keep.
type Policy struct {
	Matcher policy.Matcher

	EnvReset      bool
	SetLogname    bool
	SetHome       bool
	AlwaysSetHome bool
	SecurePath    string // empty disables secure-path enforcement
	UserIsExempt  bool
}

// Platform carries the few platform constants the Rebuilder needs:
// the standard PATH default and the mail spool directory (with or
// without a trailing slash).
type Platform struct {
	StdPath string
	MailDir string
}

// Command describes the command being elevated to, for SUDO_COMMAND.
type Command struct {
	Name string
	Args []string
}

// Request bundles everything Rebuild needs beyond the prior
// environment: the mode/policy/platform inputs, the invoking and
// target identities, the command being run, and (for Branch A, non-
// login-shell case) a seeder for /etc/environment-style defaults.
type Request struct {
	Mode     Mode
	Policy   Policy
	Platform Platform
	Invoker  identity.Identity
	Target   identity.Identity
	Command  Command

	// Seed, if non-nil, is called once at the start of a clean-slate
	// non-login-shell rebuild to populate platform defaults (e.g. from
	// /etc/environment or a login class) before the invoker's kept
	// variables are layered on top. It returns the NAME=VALUE entries
	// to seed the fresh table with.
	Seed func() ([]string, error)
}

// Result is the outcome of a successful rebuild.
type Result struct {
	Table *envtable.Table

	// Deleted and Kept count, for observability, how many old-
	// environment entries were dropped vs. carried over (Branch A and
	// Branch B both populate this).
	Deleted int
	Kept    int
}

// Rebuild allocates a fresh table, decides reset_home, branches on
// EnvReset/LoginShell into a clean-slate rebuild or a filter-only
// rebuild, applies SecurePath and the set_logname identity consistency
// rules, sets defaults for SHELL/TERM/PATH, restores a deferred
// SUDO_PS1->PS1, and always inserts
// SUDO_COMMAND/SUDO_USER/SUDO_UID/SUDO_GID.
//
// old is the table to rebuild from (the previous generation); Rebuild
// does not mutate it.
func Rebuild(old *envtable.Table, req Request) (Result, error) {
	fresh := envtable.New(128)
	var did DidMask
	var deferredPS1 string
	var res Result

	if req.Policy.EnvReset || req.Mode.LoginShell {
		m().rebuilds_total.clean_slate.Inc()
		if err := rebuildCleanSlate(fresh, old, req, &did, &deferredPS1, &res); err != nil {
			m().rebuild_errors_total.Inc()
			return Result{}, err
		}
	} else {
		m().rebuilds_total.filter_only.Inc()
		rebuildFilterOnly(fresh, old, req, &did, &deferredPS1, &res)
	}

	resetHome := req.Mode.Run && (req.Policy.AlwaysSetHome || req.Mode.ResetHome ||
		req.Mode.LoginShell || (req.Mode.Shell && req.Policy.SetHome))
	if req.Policy.EnvReset || req.Mode.LoginShell {
		if !did.HasKept(bitHome) {
			resetHome = true
		}
	}

	// Replace PATH with the secure default, unless the user is exempt.
	if req.Policy.SecurePath != "" && !req.Policy.UserIsExempt {
		if err := fresh.Set("PATH", req.Policy.SecurePath, true, true); err != nil {
			return Result{}, fmt.Errorf("rebuild: set secure PATH: %w", err)
		}
		did.SetDid(bitPath)
	}

	if req.Policy.SetLogname && !req.Mode.LoginShell {
		if err := applySetLogname(fresh, req, &did); err != nil {
			return Result{}, err
		}
	}

	if resetHome {
		if err := fresh.Set("HOME", req.Target.Home, true, true); err != nil {
			return Result{}, fmt.Errorf("rebuild: set HOME: %w", err)
		}
	}

	if !did.HasDid(bitShell) {
		if err := fresh.Set("SHELL", req.Target.Shell, false, false); err != nil {
			return Result{}, fmt.Errorf("rebuild: default SHELL: %w", err)
		}
	}
	if !did.HasDid(bitTerm) {
		if err := fresh.Put("TERM=unknown", false, false); err != nil {
			return Result{}, fmt.Errorf("rebuild: default TERM: %w", err)
		}
	}
	if !did.HasDid(bitPath) {
		if err := fresh.Set("PATH", req.Platform.StdPath, false, true); err != nil {
			return Result{}, fmt.Errorf("rebuild: default PATH: %w", err)
		}
	}

	if deferredPS1 != "" {
		if err := fresh.Put(deferredPS1, true, true); err != nil {
			return Result{}, fmt.Errorf("rebuild: set PS1: %w", err)
		}
	}

	if err := setSudoCommand(fresh, req.Command); err != nil {
		return Result{}, err
	}
	if err := fresh.Set("SUDO_USER", req.Invoker.Name, true, true); err != nil {
		return Result{}, fmt.Errorf("rebuild: set SUDO_USER: %w", err)
	}
	if err := fresh.Set("SUDO_UID", strconv.Itoa(req.Invoker.UID), true, true); err != nil {
		return Result{}, fmt.Errorf("rebuild: set SUDO_UID: %w", err)
	}
	if err := fresh.Set("SUDO_GID", strconv.Itoa(req.Invoker.GID), true, true); err != nil {
		return Result{}, fmt.Errorf("rebuild: set SUDO_GID: %w", err)
	}

	m().entries_deleted_total.Add(res.Deleted)
	m().entries_kept_total.Add(res.Kept)

	res.Table = fresh
	return res, nil
}

// rebuildCleanSlate implements the clean-slate rebuild branch.
func rebuildCleanSlate(fresh, old *envtable.Table, req Request, did *DidMask, deferredPS1 *string, res *Result) error {
	if !req.Mode.LoginShell && req.Seed != nil {
		seeded, err := req.Seed()
		if err != nil {
			return fmt.Errorf("rebuild: seed defaults: %w", err)
		}
		for _, e := range seeded {
			if err := fresh.Put(e, true, false); err != nil {
				return fmt.Errorf("rebuild: seed %q: %w", e, err)
			}
			did.UpdateFromEntry(e)
		}
	}

	for _, e := range old.Entries() {
		keepit := req.Policy.Matcher.ShouldKeep(e)

		if ps1, ok := cutPrefix(e, "SUDO_PS1="); ok {
			*deferredPS1 = "PS1=" + ps1
		}

		if keepit {
			if err := fresh.Put(e, true, false); err != nil {
				return fmt.Errorf("rebuild: keep %q: %w", e, err)
			}
			did.UpdateFromEntry(e)
			res.Kept++
		} else {
			res.Deleted++
		}
	}
	did.Promote()

	if req.Mode.LoginShell {
		if err := fresh.Set("SHELL", req.Target.Shell, true, true); err != nil {
			return fmt.Errorf("rebuild: set SHELL: %w", err)
		}
		if err := fresh.Set("LOGNAME", req.Target.Name, true, true); err != nil {
			return fmt.Errorf("rebuild: set LOGNAME: %w", err)
		}
		if err := fresh.Set("USER", req.Target.Name, true, true); err != nil {
			return fmt.Errorf("rebuild: set USER: %w", err)
		}
		if err := fresh.Set("USERNAME", req.Target.Name, true, true); err != nil {
			return fmt.Errorf("rebuild: set USERNAME: %w", err)
		}
	} else if !req.Policy.SetLogname {
		if !did.HasDid(bitLogname) {
			if err := fresh.Set("LOGNAME", req.Invoker.Name, false, true); err != nil {
				return fmt.Errorf("rebuild: fill LOGNAME: %w", err)
			}
		}
		if !did.HasDid(bitUser) {
			if err := fresh.Set("USER", req.Invoker.Name, false, true); err != nil {
				return fmt.Errorf("rebuild: fill USER: %w", err)
			}
		}
		if !did.HasDid(bitUsername) {
			if err := fresh.Set("USERNAME", req.Invoker.Name, false, true); err != nil {
				return fmt.Errorf("rebuild: fill USERNAME: %w", err)
			}
		}
	}

	if req.Mode.LoginShell || !did.HasKept(bitMail) {
		mail := joinMailPath(req.Platform.MailDir, req.Target.Name)
		if err := fresh.Put("MAIL="+mail, did.HasDid(bitMail), true); err != nil {
			return fmt.Errorf("rebuild: set MAIL: %w", err)
		}
	}

	return nil
}

// rebuildFilterOnly implements the filter-only rebuild branch.
func rebuildFilterOnly(fresh, old *envtable.Table, req Request, did *DidMask, deferredPS1 *string, res *Result) {
	for _, e := range old.Entries() {
		if req.Policy.Matcher.ShouldDelete(e) {
			res.Deleted++
			continue
		}

		if ps1, ok := cutPrefix(e, "SUDO_PS1="); ok {
			*deferredPS1 = "PS1=" + ps1
		} else if _, ok := cutPrefix(e, "SHELL="); ok {
			did.SetDid(bitShell)
		} else if _, ok := cutPrefix(e, "PATH="); ok {
			did.SetDid(bitPath)
		} else if _, ok := cutPrefix(e, "TERM="); ok {
			did.SetDid(bitTerm)
		}

		// note: Put's error is unreachable here since every e came from a
		// Table (hence already has '='), and dedup/overwrite=false never
		// fails.
		_ = fresh.Put(e, true, false)
		res.Kept++
	}
}

// applySetLogname implements the set_logname consistency rule: if
// none of LOGNAME/USER/USERNAME were kept, set all three to the
// target name; otherwise copy whichever was kept into the unset
// siblings, so the triple never mixes invoker and target identities.
func applySetLogname(fresh *envtable.Table, req Request, did *DidMask) error {
	anyKept := did.HasKept(bitLogname) || did.HasKept(bitUser) || did.HasKept(bitUsername)
	if !anyKept {
		for _, name := range []string{"LOGNAME", "USER", "USERNAME"} {
			if err := fresh.Set(name, req.Target.Name, true, true); err != nil {
				return fmt.Errorf("rebuild: set_logname %s: %w", name, err)
			}
		}
		return nil
	}

	allKept := did.HasKept(bitLogname) && did.HasKept(bitUser) && did.HasKept(bitUsername)
	if allKept {
		return nil
	}

	var source string
	switch {
	case did.HasKept(bitLogname):
		source, _ = fresh.Get("LOGNAME")
	case did.HasKept(bitUser):
		source, _ = fresh.Get("USER")
	case did.HasKept(bitUsername):
		source, _ = fresh.Get("USERNAME")
	}
	if source == "" {
		return nil
	}

	if !did.HasKept(bitLogname) {
		if err := fresh.Set("LOGNAME", source, true, true); err != nil {
			return fmt.Errorf("rebuild: set_logname LOGNAME: %w", err)
		}
	}
	if !did.HasKept(bitUser) {
		if err := fresh.Set("USER", source, true, true); err != nil {
			return fmt.Errorf("rebuild: set_logname USER: %w", err)
		}
	}
	if !did.HasKept(bitUsername) {
		if err := fresh.Set("USERNAME", source, true, true); err != nil {
			return fmt.Errorf("rebuild: set_logname USERNAME: %w", err)
		}
	}
	return nil
}

func setSudoCommand(fresh *envtable.Table, cmd Command) error {
	v := cmd.Name
	if len(cmd.Args) > 0 {
		v = cmd.Name + " " + strings.Join(cmd.Args, " ")
	}
	if err := fresh.Set("SUDO_COMMAND", v, true, true); err != nil {
		return fmt.Errorf("rebuild: set SUDO_COMMAND: %w", err)
	}
	return nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// joinMailPath joins dir and user as a mail spool path: if dir already
// ends in '/', no separator is added.
func joinMailPath(dir, user string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + user
	}
	return dir + "/" + user
}

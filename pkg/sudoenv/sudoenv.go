// Package sudoenv is the public facade wiring EnvTable, PolicyMatcher,
// EnvFileReader, Rebuilder, Hooks, identity resolution, config, the
// audit database, and logging into the single collaborator a
// privilege-elevation front end needs: an Environment.
//
// NewEnvironment takes a config.PolicyConfig and wires the
// environment-sanitization core plus its ambient stack into one value
// a front end can call Init/RebuildEnv/ValidateEnvVars against.
package sudoenv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/envguard/envguard/internal/auditdb"
	"github.com/envguard/envguard/internal/config"
	"github.com/envguard/envguard/internal/envfile"
	"github.com/envguard/envguard/internal/envtable"
	"github.com/envguard/envguard/internal/hooks"
	"github.com/envguard/envguard/internal/identity"
	"github.com/envguard/envguard/internal/logging"
	"github.com/envguard/envguard/internal/policy"
	"github.com/envguard/envguard/internal/rebuild"
)

// Environment bundles a live EnvTable with the configured matcher,
// hooks, logger, and (optional) audit database.
type Environment struct {
	Logger  logging.Logger
	Config  *config.PolicyConfig
	Matcher policy.Matcher
	Hooks   *hooks.Shims
	Audit   *auditdb.DB // nil if ENVGUARD_AUDIT_DB is unset

	old envtable.Old
}

// NewEnvironment configures an Environment from c: it builds the
// policy lists (built-ins plus ENVGUARD_EXTRA_*/rule-file overrides),
// the logger, and (if configured) the audit database.
func NewEnvironment(c *config.PolicyConfig) (*Environment, error) {
	l, err := logging.Configure(c)
	if err != nil {
		return nil, fmt.Errorf("sudoenv: configure logging: %w", err)
	}

	lists := policy.DefaultLists()
	lists.Delete = append(lists.Delete, c.ExtraDelete...)
	lists.Check = append(lists.Check, c.ExtraCheck...)
	lists.Keep = append(lists.Keep, c.ExtraKeep...)
	if c.RulesFile != "" {
		if err := config.LoadRuleOverrides(c.RulesFile, &lists); err != nil {
			return nil, fmt.Errorf("sudoenv: load rule overrides: %w", err)
		}
	}

	e := &Environment{
		Logger: l,
		Config: c,
		Matcher: policy.Matcher{
			Lists:       lists,
			ZoneinfoDir: c.ZoneinfoDir,
		},
		Hooks: hooks.New(),
	}

	if c.AuditDB != "" {
		db, err := auditdb.Open(c.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("sudoenv: open audit db: %w", err)
		}
		if cur, req, err := db.Version(); err != nil {
			return nil, fmt.Errorf("sudoenv: audit db version: %w", err)
		} else if cur != req {
			if err := db.MigrateUp(context.Background(), req); err != nil {
				return nil, fmt.Errorf("sudoenv: migrate audit db: %w", err)
			}
		}
		e.Audit = db
	}

	return e, nil
}

// Init materializes the current EnvTable from the invoker's
// environment (env_init) and attaches Hooks to it. The table held
// before the call is replaced; it is not kept as a previous
// generation.
func (e *Environment) Init(environ []string) *envtable.Table {
	cur := envtable.FromEnviron(environ)
	e.old.Set(cur)
	e.Hooks.Attach(cur)
	return cur
}

// RebuildRequest bundles the pieces of rebuild.Request an Environment
// doesn't already own (the matcher and policy flags come from
// Environment.Matcher and Environment.Config; the secure-path
// exemption is RebuildEnv's userIsExempt argument).
type RebuildRequest struct {
	Mode     rebuild.Mode
	Platform rebuild.Platform
	Invoker  identity.Identity
	Target   identity.Identity
	Command  rebuild.Command
	Seed     func() ([]string, error)
}

// RebuildEnv runs the Rebuilder against the current table, recording
// an audit entry on success if Audit is configured, and re-attaches
// Hooks to the new table.
func (e *Environment) RebuildEnv(req RebuildRequest, userIsExempt bool) (*envtable.Table, error) {
	old := e.old.Table()
	if old == nil {
		old = envtable.New(0)
	}

	res, err := rebuild.Rebuild(old, rebuild.Request{
		Mode: req.Mode,
		Policy: rebuild.Policy{
			Matcher:       e.Matcher,
			EnvReset:      e.Config.EnvReset,
			SetLogname:    e.Config.SetLogname,
			SetHome:       e.Config.SetHome,
			AlwaysSetHome: e.Config.AlwaysSetHome,
			SecurePath:    e.Config.SecurePath,
			UserIsExempt:  userIsExempt,
		},
		Platform: req.Platform,
		Invoker:  req.Invoker,
		Target:   req.Target,
		Command:  req.Command,
		Seed:     req.Seed,
	})
	if err != nil {
		e.Logger.Error().Err(err).Msg("rebuild failed")
		return nil, err
	}

	e.old.Set(res.Table)
	e.Hooks.Attach(res.Table)

	if e.Audit != nil {
		if err := e.Audit.RecordRebuild(auditdb.RebuildRecord{
			Time:       time.Now(),
			Invoker:    req.Invoker.Name,
			Target:     req.Target.Name,
			Command:    req.Command.Name,
			Deleted:    res.Deleted,
			Kept:       res.Kept,
			CleanSlate: e.Config.EnvReset || req.Mode.LoginShell,
		}); err != nil {
			e.Logger.Warn().Err(err).Msg("failed to record rebuild audit entry")
		}
	}

	return res.Table, nil
}

// ValidateEnvVars is the validation surface a policy layer calls
// before trusting caller-supplied NAME=VALUE assignments: each must
// pass (SecurePath-and-not-exempt forbids explicit PATH=) and
// (EnvReset ? should_keep : !should_delete).
// Rejections are aggregated into a single diagnostic, bounded at 4
// KiB with "..." truncation; values are elided from the diagnostic.
func (e *Environment) ValidateEnvVars(vars []string, userIsExempt bool, invoker string) (ok bool, diagnostic string) {
	const maxDiagnostic = 4096

	var rejected []string
	for _, v := range vars {
		n := name(v)
		if e.Config.SecurePath != "" && !userIsExempt && n == "PATH" {
			rejected = append(rejected, n)
			continue
		}
		var allowed bool
		if e.Config.EnvReset {
			allowed = e.Matcher.ShouldKeep(v)
		} else {
			allowed = !e.Matcher.ShouldDelete(v)
		}
		if !allowed {
			rejected = append(rejected, n)
		}
	}

	if len(rejected) == 0 {
		return true, ""
	}

	diagnostic = strings.Join(rejected, ", ")
	if len(diagnostic) > maxDiagnostic {
		diagnostic = diagnostic[:maxDiagnostic-3] + "..."
	}

	if e.Audit != nil {
		if err := e.Audit.RecordRejection(auditdb.RejectionRecord{
			Time:    time.Now(),
			Invoker: invoker,
			Names:   diagnostic,
		}); err != nil {
			e.Logger.Warn().Err(err).Msg("failed to record rejection audit entry")
		}
	}

	return false, diagnostic
}

// ReadEnvFile loads path into the current table, inserting with dedup
// and the given overwrite policy.
func (e *Environment) ReadEnvFile(path string, overwrite bool) error {
	cur := e.old.Table()
	if cur == nil {
		cur = envtable.New(0)
		e.old.Set(cur)
	}
	return envfile.LoadInto(path, func(name, value string) error {
		return cur.Set(name, value, true, overwrite)
	})
}

// MergeExternal merges externally-sourced NAME=VALUE entries (e.g.
// from a PAM environment or a login-class default set) into the
// current table without running the full Rebuilder.
func (e *Environment) MergeExternal(entries []string, overwrite bool) error {
	cur := e.old.Table()
	if cur == nil {
		cur = envtable.New(0)
		e.old.Set(cur)
	}
	for _, entry := range entries {
		if err := cur.Put(entry, true, overwrite); err != nil {
			return fmt.Errorf("sudoenv: merge %q: %w", entry, err)
		}
	}
	return nil
}

// InsertVars is the insert_env_vars operation: it inserts each
// NAME=VALUE pair a plugin or front end explicitly allows through,
// bypassing PolicyMatcher (the caller has already decided these are
// safe), always with dedup/overwrite semantics.
func (e *Environment) InsertVars(entries []string) error {
	cur := e.old.Table()
	if cur == nil {
		cur = envtable.New(0)
		e.old.Set(cur)
	}
	for _, entry := range entries {
		if err := cur.Put(entry, true, true); err != nil {
			return fmt.Errorf("sudoenv: insert %q: %w", entry, err)
		}
	}
	return nil
}

// SwapOld is env_swap_old: it exchanges the current table for
// whichever table was previously retained as old.
func (e *Environment) SwapOld(cur *envtable.Table) (*envtable.Table, error) {
	prev, err := e.old.Swap(cur)
	if err != nil {
		return nil, fmt.Errorf("sudoenv: swap old: %w", err)
	}
	e.Hooks.Attach(prev)
	return prev, nil
}

// Current returns the table currently retained (the most recent one
// passed to Init, RebuildEnv, or SwapOld), or nil if none.
func (e *Environment) Current() *envtable.Table {
	return e.old.Table()
}

func name(entry string) string {
	if i := strings.IndexByte(entry, '='); i >= 0 {
		return entry[:i]
	}
	return entry
}

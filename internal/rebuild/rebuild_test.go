package rebuild

import (
	"testing"

	"github.com/envguard/envguard/internal/envtable"
	"github.com/envguard/envguard/internal/identity"
	"github.com/envguard/envguard/internal/policy"
)

func TestRebuildCleanSlateEndToEnd(t *testing.T) {
	old := envtable.FromEnviron([]string{
		"HOME=/home/alice",
		"PATH=/usr/bin",
		"TERM=xterm",
		"LD_PRELOAD=/tmp/evil.so",
		"DISPLAY=:0",
		"SUDO_PS1=# ",
		"SHELL=/bin/bash",
	})

	req := Request{
		Mode: Mode{Run: true},
		Policy: Policy{
			Matcher:    policy.Matcher{Lists: policy.DefaultLists()},
			EnvReset:   true,
			SetLogname: true,
		},
		Platform: Platform{StdPath: "/usr/bin:/bin", MailDir: "/var/mail"},
		Invoker:  identity.Identity{Name: "alice", UID: 1000, GID: 1000},
		Target:   identity.Identity{Name: "bob", Home: "/home/bob", Shell: "/bin/zsh"},
		Command:  Command{Name: "/bin/ls"},
	}

	res, err := Rebuild(old, req)
	if err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	want := map[string]string{
		"DISPLAY":      ":0",
		"TERM":         "xterm",
		"PATH":         "/usr/bin",
		"HOME":         "/home/bob",
		"SHELL":        "/bin/zsh",
		"LOGNAME":      "bob",
		"USER":         "bob",
		"USERNAME":     "bob",
		"MAIL":         "/var/mail/bob",
		"PS1":          "# ",
		"SUDO_COMMAND": "/bin/ls",
		"SUDO_USER":    "alice",
		"SUDO_UID":     "1000",
		"SUDO_GID":     "1000",
	}
	for k, v := range want {
		got, ok := res.Table.Get(k)
		if !ok || got != v {
			t.Errorf("%s = %q, %v; want %q, true", k, got, ok, v)
		}
	}
	if _, ok := res.Table.Get("LD_PRELOAD"); ok {
		t.Error("LD_PRELOAD should not survive a clean-slate rebuild")
	}
}

func TestRebuildFilterOnlyEndToEnd(t *testing.T) {
	old := envtable.FromEnviron([]string{
		"PATH=/tmp/bad:/bin",
		"IFS=x",
		"LD_PRELOAD=/tmp/evil.so",
		"BASH_FUNC_foo%%=() { :; }",
		"EDITOR=vim",
	})

	req := Request{
		Mode: Mode{Run: true},
		Policy: Policy{
			Matcher:    policy.Matcher{Lists: policy.DefaultLists()},
			EnvReset:   false,
			SecurePath: "/sbin:/bin",
		},
		Platform: Platform{StdPath: "/usr/bin:/bin", MailDir: "/var/mail"},
		Invoker:  identity.Identity{Name: "alice", UID: 1000, GID: 1000},
		Target:   identity.Identity{Name: "bob", Home: "/home/bob", Shell: "/bin/zsh"},
		Command:  Command{Name: "/bin/ls"},
	}

	res, err := Rebuild(old, req)
	if err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	if got, ok := res.Table.Get("PATH"); !ok || got != "/sbin:/bin" {
		t.Errorf("PATH = %q, %v; want /sbin:/bin, true", got, ok)
	}
	if got, ok := res.Table.Get("EDITOR"); !ok || got != "vim" {
		t.Errorf("EDITOR = %q, %v; want vim, true (unrelated vars survive filter-only)", got, ok)
	}
	for _, name := range []string{"IFS", "LD_PRELOAD", "BASH_FUNC_foo%%"} {
		if _, ok := res.Table.Get(name); ok {
			t.Errorf("%s should have been deleted by the filter-only rebuild", name)
		}
	}
}

func TestDidMaskPromote(t *testing.T) {
	var d DidMask
	d.SetDid(bitHome)
	d.SetDid(bitPath)

	if d.HasKept(bitHome) || d.HasKept(bitPath) {
		t.Fatal("kept bits must not be set before Promote")
	}
	d.Promote()
	if !d.HasKept(bitHome) || !d.HasKept(bitPath) {
		t.Error("Promote should copy did bits into kept bits")
	}
	if d.HasKept(bitShell) {
		t.Error("Promote must not set unrelated kept bits")
	}
}

func TestApplySetLognameNonePreservedSetsAllThree(t *testing.T) {
	fresh := envtable.New(0)
	var did DidMask
	req := Request{Target: testTarget()}

	if err := applySetLogname(fresh, req, &did); err != nil {
		t.Fatalf("applySetLogname returned error: %v", err)
	}
	for _, name := range []string{"LOGNAME", "USER", "USERNAME"} {
		v, ok := fresh.Get(name)
		if !ok || v != "bob" {
			t.Errorf("%s = %q, %v; want bob, true", name, v, ok)
		}
	}
}

func TestApplySetLognamePartialPreservedFixesConsistency(t *testing.T) {
	fresh := envtable.New(0)
	must(t, fresh.Set("USER", "carol", true, true))

	var did DidMask
	did.SetKept(bitUser)

	req := Request{Target: testTarget()}
	if err := applySetLogname(fresh, req, &did); err != nil {
		t.Fatalf("applySetLogname returned error: %v", err)
	}

	for _, name := range []string{"LOGNAME", "USER", "USERNAME"} {
		v, ok := fresh.Get(name)
		if !ok || v != "carol" {
			t.Errorf("%s = %q, %v; want carol, true (none should be the target user)", name, v, ok)
		}
	}
}

func TestApplySetLognameAllPreservedLeavesTableAlone(t *testing.T) {
	fresh := envtable.New(0)
	must(t, fresh.Set("LOGNAME", "carol", true, true))
	must(t, fresh.Set("USER", "carol", true, true))
	must(t, fresh.Set("USERNAME", "carol", true, true))

	var did DidMask
	did.SetKept(bitLogname)
	did.SetKept(bitUser)
	did.SetKept(bitUsername)

	req := Request{Target: testTarget()}
	if err := applySetLogname(fresh, req, &did); err != nil {
		t.Fatalf("applySetLogname returned error: %v", err)
	}
	for _, name := range []string{"LOGNAME", "USER", "USERNAME"} {
		v, _ := fresh.Get(name)
		if v != "carol" {
			t.Errorf("%s = %q, want unchanged carol", name, v)
		}
	}
}

func TestJoinMailPath(t *testing.T) {
	if got := joinMailPath("/var/mail", "bob"); got != "/var/mail/bob" {
		t.Errorf("joinMailPath = %q", got)
	}
	if got := joinMailPath("/var/mail/", "bob"); got != "/var/mail/bob" {
		t.Errorf("joinMailPath = %q", got)
	}
}

func testTarget() identity.Identity {
	return identity.Identity{Name: "bob"}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

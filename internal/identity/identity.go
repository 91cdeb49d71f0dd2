//go:build !windows

// Package identity supplies the default backing for the target/invoker
// Identity collaborator, kept external to the environment-sanitization
// core: resolving a user's name, uid, gid, home directory, and login
// shell.
//
// Like the privilege-elevation model it backs, this package only
// supports Unix-like platforms.
package identity

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// Identity describes a user account as the Rebuilder needs it: the
// runas (target) identity supplies Name/Home/Shell defaults; the
// invoker identity supplies Name/UID/GID for SUDO_USER/SUDO_UID/
// SUDO_GID.
type Identity struct {
	Name  string
	UID   int
	GID   int
	Home  string
	Shell string
}

// Invoker resolves the identity of the calling process: its real uid
// and gid (via unix.Getuid/unix.Getgid) and the corresponding
// username.
func Invoker() (Identity, error) {
	uid := unix.Getuid()
	gid := unix.Getgid()

	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return Identity{}, fmt.Errorf("identity: lookup invoker uid %d: %w", uid, err)
	}
	return Identity{
		Name: u.Username,
		UID:  uid,
		GID:  gid,
		Home: u.HomeDir,
	}, nil
}

// Target resolves the identity of a named runas user (defaulting the
// shell to /bin/sh if the platform account database doesn't carry
// one, which os/user never populates).
func Target(name string) (Identity, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: lookup target user %q: %w", name, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: parse gid %q: %w", u.Gid, err)
	}
	return Identity{
		Name:  u.Username,
		UID:   uid,
		GID:   gid,
		Home:  u.HomeDir,
		Shell: loginShell(u.Username),
	}, nil
}

//go:build !windows

package identity

import (
	"bufio"
	"os"
	"strings"
)

// loginShell looks up username's login shell from /etc/passwd, the
// field os/user.User doesn't expose. An unresolvable shell falls back
// to /bin/sh.
func loginShell(username string) string {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return "/bin/sh"
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ":")
		if len(fields) >= 7 && fields[0] == username {
			if fields[6] != "" {
				return fields[6]
			}
			break
		}
	}
	return "/bin/sh"
}

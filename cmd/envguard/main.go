// Command envguard is a reference front end for the environment-
// sanitization core: it rebuilds the process environment for a
// target user and execs the requested command with it.
//
// Identity switching (setuid/setgid), PAM, and policy-rule storage
// are external collaborators per the core's scope and are not
// implemented here: this binary demonstrates the Rebuilder, not a
// full privilege-elevation tool.
package main

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"syscall"

	"github.com/hashicorp/go-envparse"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"

	"github.com/envguard/envguard/internal/config"
	"github.com/envguard/envguard/internal/identity"
	"github.com/envguard/envguard/internal/rebuild"
	"github.com/envguard/envguard/pkg/sudoenv"
)

var opt struct {
	Help       bool
	User       string
	Shell      bool
	LoginShell bool
	ResetHome  bool
	EnvFile    string
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
	pflag.StringVarP(&opt.User, "user", "u", "root", "Run the command as this user")
	pflag.BoolVarP(&opt.Shell, "shell", "s", false, "Run the user's login shell")
	pflag.BoolVarP(&opt.LoginShell, "login", "i", false, "Simulate a full login")
	pflag.BoolVarP(&opt.ResetHome, "set-home", "H", false, "Set HOME to the target user's home directory")
	pflag.StringVar(&opt.EnvFile, "config-env-file", "", "Load ENVGUARD_* config overrides from this file instead of the environment")
}

func main() {
	pflag.Parse()

	if opt.Help || (pflag.NArg() == 0 && !opt.Shell && !opt.LoginShell) {
		fmt.Printf("usage: %s [options] [command [args...]]\n\noptions:\n%s\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	environ := os.Environ()

	dbg := http.NewServeMux()
	dbg.HandleFunc("/debug/pprof/", pprof.Index)
	dbg.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	dbg.HandleFunc("/debug/pprof/profile", pprof.Profile)
	dbg.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	dbg.HandleFunc("/debug/pprof/trace", pprof.Trace)
	dbg.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		rebuild.MetricsSet().WritePrometheus(w)
	})
	if addr, _ := getEnvList("INSECURE_DEBUG_SERVER_ADDR", environ); addr != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "warning: running insecure debug server on %q\n", addr)
			if err := http.ListenAndServe(addr, dbg); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to start debug server: %v\n", err)
			}
		}()
	}

	configEnv := environ
	if opt.EnvFile != "" {
		fileVars, err := readEnvFile(opt.EnvFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read config env file: %v\n", err)
			os.Exit(1)
		}
		configEnv = fileVars
	}

	var c config.PolicyConfig
	if err := c.UnmarshalEnv(configEnv); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	env, err := sudoenv.NewEnvironment(&c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: initialize environment: %v\n", err)
		os.Exit(1)
	}

	invoker, err := identity.Invoker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: resolve invoker identity: %v\n", err)
		os.Exit(1)
	}
	target, err := identity.Target(opt.User)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: resolve target identity %q: %v\n", opt.User, err)
		os.Exit(1)
	}

	env.Init(environ)

	cmdName := target.Shell
	var cmdArgs []string
	if pflag.NArg() > 0 {
		cmdName = pflag.Arg(0)
		cmdArgs = pflag.Args()[1:]
	}

	tbl, err := env.RebuildEnv(sudoenv.RebuildRequest{
		Mode: rebuild.Mode{
			Run:        pflag.NArg() > 0,
			Shell:      opt.Shell,
			LoginShell: opt.LoginShell,
			ResetHome:  opt.ResetHome,
		},
		Platform: rebuild.Platform{StdPath: c.StdPath, MailDir: c.MailDir},
		Invoker:  invoker,
		Target:   target,
		Command:  rebuild.Command{Name: cmdName, Args: cmdArgs},
	}, invoker.UID == 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: rebuild environment: %v\n", err)
		os.Exit(1)
	}

	path, err := resolvePath(cmdName, tbl.Environ())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", cmdName, err)
		os.Exit(127)
	}

	argv := append([]string{cmdName}, cmdArgs...)
	if err := syscall.Exec(path, argv, tbl.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "error: exec %s: %v\n", cmdName, err)
		os.Exit(126)
	}
}

func getEnvList(k string, e ...[]string) (string, bool) {
	for _, l := range e {
		for _, x := range l {
			if xk, xv, ok := strings.Cut(x, "="); ok && xk == k {
				return xv, true
			}
		}
	}
	return "", false
}

func resolvePath(name string, environ []string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	pathVar, _ := getEnvList("PATH", environ)
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			continue
		}
		candidate := dir + "/" + name
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("not found in PATH")
}

func readEnvFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	r := make([]string, 0, len(m))
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}

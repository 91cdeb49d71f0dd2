package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-envparse"

	"github.com/envguard/envguard/internal/policy"
)

// LoadRuleOverrides reads an administrator-supplied rule file at path
// (NAME=comma,separated,patterns per line, shell-quoting and comments
// handled by go-envparse) and appends its ENVGUARD_DELETE/
// ENVGUARD_CHECK/ENVGUARD_KEEP entries onto lists.
//
// This is deliberately a different parser from internal/envfile: that
// package implements the exact NAME=VALUE/quote-stripping grammar
// required for loading values into the environment itself, while this
// file format is an envguard-specific admin config, so reusing the
// ecosystem's general .env-style parser here doesn't collide with the
// byte-for-byte env-file semantics the environment loader needs.
func LoadRuleOverrides(path string, lists *policy.Lists) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: open rule overrides %s: %w", path, err)
	}
	defer f.Close()

	vars, err := envparse.Parse(f)
	if err != nil {
		return fmt.Errorf("config: parse rule overrides %s: %w", path, err)
	}

	if v, ok := vars["ENVGUARD_DELETE"]; ok {
		lists.Delete = append(lists.Delete, splitPatterns(v)...)
	}
	if v, ok := vars["ENVGUARD_CHECK"]; ok {
		lists.Check = append(lists.Check, splitPatterns(v)...)
	}
	if v, ok := vars["ENVGUARD_KEEP"]; ok {
		lists.Keep = append(lists.Keep, splitPatterns(v)...)
	}
	return nil
}

func splitPatterns(v string) policy.RuleList {
	var out policy.RuleList
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package config loads the policy-store collaborator, kept external to
// the core: env_delete/env_check/env_keep overrides and the
// boolean/scalar policy flags (env_reset, set_logname, secure_path,
// sudoers_locale, ...).
//
// Fields are populated via reflection from a `env:"NAME=default"` or
// `env:"NAME?=default"` struct tag, with the trailing `?` meaning "the
// empty string is a valid explicit value, not just the absence of
// one".
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PolicyConfig holds the policy-store flags and overrides the
// Rebuilder and PolicyMatcher consume. ExtraDelete/ExtraCheck/ExtraKeep
// are comma-separated pattern lists appended to the built-in defaults
// (see policy.DefaultLists).
type PolicyConfig struct {
	EnvReset      bool `env:"ENVGUARD_ENV_RESET=true"`
	SetLogname    bool `env:"ENVGUARD_SET_LOGNAME=true"`
	SetHome       bool `env:"ENVGUARD_SET_HOME"`
	AlwaysSetHome bool `env:"ENVGUARD_ALWAYS_SET_HOME"`

	SecurePath string `env:"ENVGUARD_SECURE_PATH"`

	SudoersLocale string `env:"ENVGUARD_SUDOERS_LOCALE=C"`

	StdPath     string `env:"ENVGUARD_STD_PATH=/usr/bin:/bin:/usr/sbin:/sbin"`
	MailDir     string `env:"ENVGUARD_MAIL_DIR=/var/mail"`
	ZoneinfoDir string `env:"ENVGUARD_ZONEINFO_DIR=/usr/share/zoneinfo"`

	ExtraDelete []string `env:"ENVGUARD_EXTRA_DELETE"`
	ExtraCheck  []string `env:"ENVGUARD_EXTRA_CHECK"`
	ExtraKeep   []string `env:"ENVGUARD_EXTRA_KEEP"`

	RulesFile string `env:"ENVGUARD_RULES_FILE"`

	LogLevel        zerolog.Level `env:"ENVGUARD_LOG_LEVEL=info"`
	LogFile         string        `env:"ENVGUARD_LOG_FILE"`
	AuditDB         string        `env:"ENVGUARD_AUDIT_DB"`
	ValidateTimeout time.Duration `env:"ENVGUARD_VALIDATE_TIMEOUT=2s"`
}

// UnmarshalEnv populates c from es (e.g. os.Environ()), applying each
// field's default when the corresponding variable is absent. Only
// ENVGUARD_-prefixed variables are consulted; any such variable that
// doesn't correspond to a known field is reported as an error, the way
// atlas.Config.UnmarshalEnv rejects unrecognized ATLAS_ vars.
func (c *PolicyConfig) UnmarshalEnv(es []string) error {
	em := map[string]string{}
	for _, e := range es {
		if !strings.HasPrefix(e, "ENVGUARD_") {
			continue
		}
		if k, v, ok := strings.Cut(e, "="); ok {
			em[k] = v
		}
	}

	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		envTag, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}

		var unsettable bool
		key, val, _ := strings.Cut(envTag, "=")
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			unsettable = true
		}

		if v, exists := em[key]; exists {
			if unsettable || v != "" {
				val = v
			}
			delete(em, key)
		}

		cvf := cv.FieldByName(ctf.Name)
		if err := setField(cvf, key, val); err != nil {
			return err
		}
	}

	for key := range em {
		return fmt.Errorf("config: unknown environment variable %q", key)
	}
	return nil
}

func setField(cvf reflect.Value, key, val string) error {
	switch cvf.Interface().(type) {
	case string:
		cvf.SetString(val)
	case bool:
		if val == "" {
			cvf.SetBool(false)
			return nil
		}
		v, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("config: env %s: parse bool %q: %w", key, val, err)
		}
		cvf.SetBool(v)
	case []string:
		if val == "" {
			cvf.Set(reflect.ValueOf([]string{}))
		} else {
			cvf.Set(reflect.ValueOf(strings.Split(val, ",")))
		}
	case zerolog.Level:
		v, err := zerolog.ParseLevel(val)
		if err != nil {
			return fmt.Errorf("config: env %s: parse level %q: %w", key, val, err)
		}
		cvf.Set(reflect.ValueOf(v))
	case time.Duration:
		v, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("config: env %s: parse duration %q: %w", key, val, err)
		}
		cvf.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("config: env %s: unhandled field type %T", key, cvf.Interface())
	}
	return nil
}

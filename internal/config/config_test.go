package config

import "testing"

func TestUnmarshalEnvDefaults(t *testing.T) {
	var c PolicyConfig
	if err := c.UnmarshalEnv(nil); err != nil {
		t.Fatalf("UnmarshalEnv: %v", err)
	}
	if !c.EnvReset {
		t.Error("EnvReset default should be true")
	}
	if !c.SetLogname {
		t.Error("SetLogname default should be true")
	}
	if c.StdPath == "" {
		t.Error("StdPath should have a non-empty default")
	}
}

func TestUnmarshalEnvOverrides(t *testing.T) {
	var c PolicyConfig
	err := c.UnmarshalEnv([]string{
		"ENVGUARD_ENV_RESET=false",
		"ENVGUARD_SECURE_PATH=/sbin:/bin",
		"ENVGUARD_EXTRA_KEEP=FOO,BAR",
		"PATH=/usr/bin", // not ENVGUARD_-prefixed, ignored
	})
	if err != nil {
		t.Fatalf("UnmarshalEnv: %v", err)
	}
	if c.EnvReset {
		t.Error("EnvReset should be overridden to false")
	}
	if c.SecurePath != "/sbin:/bin" {
		t.Errorf("SecurePath = %q", c.SecurePath)
	}
	if len(c.ExtraKeep) != 2 || c.ExtraKeep[0] != "FOO" || c.ExtraKeep[1] != "BAR" {
		t.Errorf("ExtraKeep = %v", c.ExtraKeep)
	}
}

func TestUnmarshalEnvRejectsUnknownVar(t *testing.T) {
	var c PolicyConfig
	err := c.UnmarshalEnv([]string{"ENVGUARD_NOT_A_REAL_FIELD=1"})
	if err == nil {
		t.Error("expected an error for an unrecognized ENVGUARD_ variable")
	}
}

package hooks

import (
	"testing"

	"github.com/envguard/envguard/internal/envtable"
)

func TestGetenvPassesThroughWhenUnattached(t *testing.T) {
	s := New()
	_, _, res := s.Getenv("PATH")
	if res != PassThrough {
		t.Errorf("result = %v, want PassThrough", res)
	}
}

func TestGetenvRoundTrip(t *testing.T) {
	s := New()
	s.Attach(envtable.FromEnviron([]string{"PATH=/bin"}))

	v, ok, res := s.Getenv("PATH")
	if res != Stop || !ok || v != "/bin" {
		t.Errorf("Getenv = %q, %v, %v; want /bin, true, Stop", v, ok, res)
	}

	_, ok, res = s.Getenv("MISSING")
	if res != Stop || ok {
		t.Errorf("Getenv(MISSING) = _, %v, %v; want _, false, Stop", ok, res)
	}
}

func TestGetenvRecursionPassesThroughInnerCall(t *testing.T) {
	s := New()
	s.Attach(envtable.FromEnviron([]string{"PATH=/bin"}))

	var innerResult Result
	s.SudoersLocaleActive = func() bool {
		_, _, innerResult = s.Getenv("PATH")
		return false
	}

	_, _, outerResult := s.Getenv("PATH")
	if innerResult != PassThrough {
		t.Errorf("inner (reentrant) call result = %v, want PassThrough", innerResult)
	}
	if outerResult != Stop {
		t.Errorf("outer call result = %v, want Stop", outerResult)
	}
}

func TestGetenvSudoersLocaleSpecialCase(t *testing.T) {
	s := New()
	s.Attach(envtable.FromEnviron([]string{"LANGUAGE=fr_FR", "LANG=fr_FR", "LC_ALL=fr_FR"}))
	s.SudoersLocaleActive = func() bool { return true }
	s.SudoersLocale = "C"

	if v, ok, _ := s.Getenv("LANGUAGE"); ok || v != "" {
		t.Errorf("LANGUAGE = %q, %v; want \"\", false under sudoers locale", v, ok)
	}
	if v, ok, _ := s.Getenv("LANG"); ok || v != "" {
		t.Errorf("LANG = %q, %v; want \"\", false under sudoers locale", v, ok)
	}
	if v, ok, _ := s.Getenv("LC_ALL"); !ok || v != "C" {
		t.Errorf("LC_ALL = %q, %v; want C, true under sudoers locale", v, ok)
	}
	if v, ok, _ := s.Getenv("LC_MESSAGES"); !ok || v != "C" {
		t.Errorf("LC_MESSAGES = %q, %v; want C, true under sudoers locale", v, ok)
	}
}

func TestGetenvSudoersLocaleInactiveFallsThroughToTable(t *testing.T) {
	s := New()
	s.Attach(envtable.FromEnviron([]string{"LANG=fr_FR"}))
	s.SudoersLocaleActive = func() bool { return false }

	if v, ok, _ := s.Getenv("LANG"); !ok || v != "fr_FR" {
		t.Errorf("LANG = %q, %v; want fr_FR, true when sudoers locale inactive", v, ok)
	}
}

func TestSetenvPutenvUnsetenv(t *testing.T) {
	s := New()
	s.Attach(envtable.New(0))

	if res, err := s.Setenv("FOO", "bar", true); res != Stop || err != nil {
		t.Fatalf("Setenv = %v, %v", res, err)
	}
	if res, err := s.Putenv("BAZ=qux"); res != Stop || err != nil {
		t.Fatalf("Putenv = %v, %v", res, err)
	}
	if v, ok, _ := s.Getenv("FOO"); !ok || v != "bar" {
		t.Errorf("FOO = %q, %v; want bar, true", v, ok)
	}
	if v, ok, _ := s.Getenv("BAZ"); !ok || v != "qux" {
		t.Errorf("BAZ = %q, %v; want qux, true", v, ok)
	}

	if res, err := s.Unsetenv("FOO"); res != Stop || err != nil {
		t.Fatalf("Unsetenv = %v, %v", res, err)
	}
	if _, ok, _ := s.Getenv("FOO"); ok {
		t.Error("FOO should be gone after Unsetenv")
	}
}

func TestSetenvPassesThroughWhenUnattached(t *testing.T) {
	s := New()
	if res, err := s.Setenv("FOO", "bar", true); res != PassThrough || err != nil {
		t.Errorf("Setenv = %v, %v; want PassThrough, nil", res, err)
	}
}

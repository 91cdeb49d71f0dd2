package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRecognizedForms(t *testing.T) {
	in := "export FOO='bar baz'\n#comment\nBAD\nBAZ=\"qux\"\n\nQUUX=plain\n"
	entries, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	want := []Entry{
		{Name: "FOO", Value: "bar baz"},
		{Name: "BAZ", Value: "qux"},
		{Name: "QUUX", Value: "plain"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestParseSkipsEmptyNameAndNoEquals(t *testing.T) {
	entries, err := Parse(strings.NewReader("=novalue\nNOEQUALS\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestStripMatchingQuotesRequiresSamePair(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"mismatched'`, `"mismatched'`},
		{`'matched'`, `matched`},
		{`"matched"`, `matched`},
		{`unquoted`, `unquoted`},
		{`'`, `'`},
		{`''`, ``},
	}
	for _, tt := range tests {
		if got := stripMatchingQuotes(tt.in); got != tt.want {
			t.Errorf("stripMatchingQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadIntoMissingFileIsSuccess(t *testing.T) {
	dir := t.TempDir()
	err := LoadInto(filepath.Join(dir, "nope"), func(name, value string) error {
		t.Fatalf("insert should not be called for a missing file")
		return nil
	})
	if err != nil {
		t.Errorf("missing file should be success, got %v", err)
	}
}

func TestLoadIntoInsertsEntries(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "environment")
	if err := os.WriteFile(p, []byte("FOO=bar\nexport BAZ=qux\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	if err := LoadInto(p, func(name, value string) error {
		got[name] = value
		return nil
	}); err != nil {
		t.Fatalf("LoadInto returned error: %v", err)
	}

	want := map[string]string{"FOO": "bar", "BAZ": "qux"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("entry %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestLoadIntoPropagatesInsertError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "environment")
	if err := os.WriteFile(p, []byte("FOO=bar\n"), 0644); err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("boom")
	err := LoadInto(p, func(name, value string) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel error, got %v", err)
	}
}

package registers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validProfile = `
name: press-line-3
description: Right cylinder, S7-1200
registers:
  - name: encoder_position
    block: 5
    offset: 124
    length: 4
    unit: mm
    min: -500.0
    max: 500.0
  - name: encoder_position_legacy
    block: 5
    offset: 20
    length: 4
`

func writeProfile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return dir
}

func TestLoadProfile(t *testing.T) {
	dir := writeProfile(t, "press-line-3", validProfile)

	loader, err := NewLoader([]string{dir})
	if err != nil {
		t.Fatalf("NewLoader err=%v", err)
	}

	profile, err := loader.Load("press-line-3")
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}

	if profile.Name != "press-line-3" {
		t.Errorf("Name=%q", profile.Name)
	}
	if len(profile.Registers) != 2 {
		t.Fatalf("registers=%d, want 2", len(profile.Registers))
	}

	reg, ok := profile.Lookup("encoder_position")
	if !ok {
		t.Fatal("encoder_position not found")
	}
	addr := reg.Address()
	if addr.Block != 5 || addr.Offset != 124 || addr.Length != 4 {
		t.Errorf("address=%+v", addr)
	}
	if reg.Min == nil || *reg.Min != -500.0 {
		t.Errorf("Min=%v", reg.Min)
	}

	if _, ok := profile.Lookup("missing"); ok {
		t.Error("Lookup found a register that does not exist")
	}
}

func TestLoadProfileCached(t *testing.T) {
	dir := writeProfile(t, "p", validProfile)

	loader, err := NewLoader([]string{dir})
	if err != nil {
		t.Fatalf("NewLoader err=%v", err)
	}

	first, err := loader.Load("p")
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}

	// Removing the file must not matter once cached.
	os.Remove(filepath.Join(dir, "p.yaml"))

	second, err := loader.Load("p")
	if err != nil {
		t.Fatalf("cached Load err=%v", err)
	}
	if first != second {
		t.Error("cache returned a different instance")
	}
}

func TestLoadProfileSchemaViolations(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing offset", `
name: p
registers:
  - name: encoder_position
    block: 5
    length: 4
`},
		{"empty registers", `
name: p
registers: []
`},
		{"negative offset", `
name: p
registers:
  - name: encoder_position
    block: 5
    offset: -4
    length: 4
`},
		{"unknown field", `
name: p
registers:
  - name: encoder_position
    block: 5
    offset: 124
    length: 4
    color: red
`},
	}

	for _, tc := range cases {
		dir := writeProfile(t, "bad", tc.content)
		loader, err := NewLoader([]string{dir})
		if err != nil {
			t.Fatalf("NewLoader err=%v", err)
		}
		_, err = loader.Load("bad")
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), "validation failed") {
			t.Errorf("%s: err=%v, want schema validation failure", tc.name, err)
		}
	}
}

func TestLoadProfileNotFound(t *testing.T) {
	loader, err := NewLoader([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("NewLoader err=%v", err)
	}
	if _, err := loader.Load("absent"); err == nil {
		t.Fatal("expected not-found error")
	}
}

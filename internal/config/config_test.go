package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "client.cfg")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadHappyPath(t *testing.T) {
	path := writeTemp(t, `Name=CTRL0001
Situation=B01L02R03A04
MAC=A1B2C3D4E5F6
Local-TCP=12500
Srv-UDP=9000
Server=10.0.0.1
Elements=TMP-1-O;LGT-1-I
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Identity.Name != "CTRL0001" {
		t.Fatalf("got name %q", cfg.Identity.Name)
	}
	if cfg.Identity.LocalTCP != 12500 || cfg.Identity.SrvUDP != 9000 {
		t.Fatalf("got ports %d/%d", cfg.Identity.LocalTCP, cfg.Identity.SrvUDP)
	}
	if cfg.Elements.Len() != 2 {
		t.Fatalf("got %d elements", cfg.Elements.Len())
	}
	if v, ok := cfg.Elements.Get("TMP-1-O"); !ok || v != "NONE" {
		t.Fatalf("got (%q,%v)", v, ok)
	}
}

func TestLoadCapsElementsAtTen(t *testing.T) {
	devices := "AAA-1-I;BBB-1-I;CCC-1-I;DDD-1-I;EEE-1-I;FFF-1-I;GGG-1-I;HHH-1-I;III-1-I;JJJ-1-I;KKK-1-I;LLL-1-I"
	path := writeTemp(t, "MAC=A1B2C3D4E5F6\nElements="+devices+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Elements.Len() != 10 {
		t.Fatalf("got %d elements, want 10", cfg.Elements.Len())
	}
}

func TestLoadInvalidMACFails(t *testing.T) {
	path := writeTemp(t, "MAC=not-a-mac\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid MAC")
	}
}

func TestLoadBadNameWarnsButSucceeds(t *testing.T) {
	path := writeTemp(t, "Name=short\nMAC=A1B2C3D4E5F6\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load should not fail on bad name length: %v", err)
	}
	if cfg.Identity.Name != "short" {
		t.Fatalf("got %q", cfg.Identity.Name)
	}
}

func TestLoadPortOutOfRange(t *testing.T) {
	path := writeTemp(t, "MAC=A1B2C3D4E5F6\nLocal-TCP=70000\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := writeTemp(t, "MAC=A1B2C3D4E5F6\nBogusKey=value\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/client.cfg"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

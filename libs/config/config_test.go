package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "booking.yaml")
	if err := os.WriteFile(path, []byte("hold_ttl: 10m\nslot_step: 20m\nport: \"9090\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOLD_TTL", "5m")

	src := NewSource()
	if err := src.ReadFile(path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	ttl, err := src.Duration("HOLD_TTL", 15*time.Minute)
	if err != nil || ttl != 5*time.Minute {
		t.Fatalf("expected env HOLD_TTL=5m, got %v (%v)", ttl, err)
	}
	step, err := src.Duration("SLOT_STEP", 30*time.Minute)
	if err != nil || step != 20*time.Minute {
		t.Fatalf("expected file slot_step=20m, got %v (%v)", step, err)
	}
	port, err := src.Port("PORT", "8080")
	if err != nil || port != "9090" {
		t.Fatalf("expected port 9090, got %q (%v)", port, err)
	}
}

func TestMissingFileIsIgnored(t *testing.T) {
	src := NewSource()
	if err := src.ReadFile(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	t.Setenv("BAD_PORT", "70000")
	t.Setenv("BAD_TTL", "soon")
	t.Setenv("FLAG", "yes")

	src := NewSource()
	if _, err := src.Port("BAD_PORT", "8080"); err == nil {
		t.Fatal("expected port validation error")
	}
	if _, err := src.Duration("BAD_TTL", time.Minute); err == nil {
		t.Fatal("expected duration validation error")
	}
	if _, err := src.RequiredString("DEFINITELY_UNSET_KEY"); err == nil {
		t.Fatal("expected required string error")
	}
	if !src.Bool("FLAG", false) {
		t.Fatal("expected FLAG to parse as true")
	}
	if got := src.String("DEFINITELY_UNSET_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

// Copyright 2025 Certen Protocol

package rollinconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	for _, key := range []string{envLockTimeSeconds, envRequiredBondWei, envSourceAddress, envElementPrefix, envProofCompact, envProofSimple} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LockTimeSeconds != defaultLockTimeSeconds {
		t.Errorf("lock time seconds = %d, want %d", cfg.LockTimeSeconds, defaultLockTimeSeconds)
	}
	if cfg.Tree.ElementPrefix != defaultElementPrefix {
		t.Errorf("element prefix = %x, want %x", cfg.Tree.ElementPrefix, defaultElementPrefix)
	}
	if cfg.RequiredBondWei.Sign() != 0 {
		t.Errorf("required bond wei = %s, want 0", cfg.RequiredBondWei)
	}
	if !cfg.Proof.Compact || cfg.Proof.Simple {
		t.Errorf("unexpected proof options: %+v", cfg.Proof)
	}
}

func TestLoad_ReadsOverrides(t *testing.T) {
	t.Setenv(envLockTimeSeconds, "3600")
	t.Setenv(envRequiredBondWei, "1000000000000000000")
	t.Setenv(envSourceAddress, "0x0000000000000000000000000000000000000001")
	t.Setenv(envElementPrefix, "0x01")
	t.Setenv(envProofCompact, "false")
	t.Setenv(envProofSimple, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LockTimeSeconds != 3600 {
		t.Errorf("lock time seconds = %d, want 3600", cfg.LockTimeSeconds)
	}
	if cfg.RequiredBondWei.String() != "1000000000000000000" {
		t.Errorf("required bond wei = %s, want 1000000000000000000", cfg.RequiredBondWei)
	}
	if cfg.SourceAddress.Hex() != "0x0000000000000000000000000000000000000001" {
		t.Errorf("source address = %s", cfg.SourceAddress.Hex())
	}
	if cfg.Tree.ElementPrefix != 0x01 {
		t.Errorf("element prefix = %x, want 01", cfg.Tree.ElementPrefix)
	}
	if cfg.Proof.Compact || !cfg.Proof.Simple {
		t.Errorf("unexpected proof options: %+v", cfg.Proof)
	}
}

func TestLoad_RejectsInvalidBond(t *testing.T) {
	t.Setenv(envRequiredBondWei, "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an invalid bond amount")
	}
}

func TestLoadYAML_ParsesAndSubstitutesEnv(t *testing.T) {
	t.Setenv("ROLLIN_TEST_BOND", "2000000000000000000")

	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	contents := `
lock_time_seconds: 7200
required_bond_wei: ${ROLLIN_TEST_BOND}
source_address: "0x0000000000000000000000000000000000000002"
tree:
  element_prefix: 0
proof:
  compact: true
  simple: false
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.LockTimeSeconds != 7200 {
		t.Errorf("lock time seconds = %d, want 7200", cfg.LockTimeSeconds)
	}
	if cfg.RequiredBondWei.String() != "2000000000000000000" {
		t.Errorf("required bond wei = %s, want 2000000000000000000", cfg.RequiredBondWei)
	}
	if cfg.SourceAddress.Hex() != "0x0000000000000000000000000000000000000002" {
		t.Errorf("source address = %s", cfg.SourceAddress.Hex())
	}
	if !cfg.Proof.Compact || cfg.Proof.Simple {
		t.Errorf("unexpected proof options: %+v", cfg.Proof)
	}
}

func TestLoadYAML_UsesDefaultWhenEnvVarMissing(t *testing.T) {
	os.Unsetenv("ROLLIN_TEST_BOND_MISSING")

	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	contents := `
required_bond_wei: ${ROLLIN_TEST_BOND_MISSING:-500}
source_address: "0x0000000000000000000000000000000000000003"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.RequiredBondWei.String() != "500" {
		t.Errorf("required bond wei = %s, want 500 (fallback)", cfg.RequiredBondWei)
	}
	if cfg.LockTimeSeconds != defaultLockTimeSeconds {
		t.Errorf("lock time seconds = %d, want default %d", cfg.LockTimeSeconds, defaultLockTimeSeconds)
	}
}

func TestLoadYAML_MissingFileErrors(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

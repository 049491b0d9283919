package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFlagsOverrides(t *testing.T) {
	intFlag := GenFlag("test.load.int", 5, "int flag")
	strFlag := GenFlag("test.load.str", "a", "string flag")

	dir := t.TempDir()
	SetFlagsPath(filepath.Join(dir, "flags.json"))
	t.Cleanup(func() { SetFlagsPath("") })

	if err := os.WriteFile(filepath.Join(dir, "flags.json"), []byte(`{"test.load.int": 12, "test.unknown": true}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GIVEMART_FLAG_OVERRIDES", "test.load.str=unquoted")

	if err := LoadFlags(context.Background(), true); err != nil {
		t.Fatalf("Couldn't load flags: %v", err)
	}
	if v := intFlag.Value(); v != 12 {
		t.Fatalf("Expected persisted value 12, got %d", v)
	}
	if v := strFlag.Value(); v != "unquoted" {
		t.Fatalf("Expected override value, got %q", v)
	}

	if f, ok := LookupFlag[int]("test.load.int"); !ok || f.Value() != 12 {
		t.Fatalf("LookupFlag returned %v, %t", f, ok)
	}
	if _, ok := LookupFlag[string]("test.load.int"); ok {
		t.Fatal("LookupFlag should not match a flag of another type")
	}
}

func TestLoadFlagsMissingFile(t *testing.T) {
	flg := GenFlag("test.missing.int", 3, "int flag")
	SetFlagsPath(filepath.Join(t.TempDir(), "absent.json"))
	t.Cleanup(func() { SetFlagsPath("") })

	if err := LoadFlags(context.Background(), false); err != nil {
		t.Fatalf("A missing flags file should leave defaults: %v", err)
	}
	if flg.Value() != 3 {
		t.Fatalf("Default changed to %d", flg.Value())
	}
}

func TestSaveFlagsRoundTrip(t *testing.T) {
	ctx := context.Background()
	flg := GenFlag("test.save.bool", false, "bool flag")

	dir := t.TempDir()
	SetFlagsPath(filepath.Join(dir, "nested", "flags.json"))
	t.Cleanup(func() { SetFlagsPath("") })

	if err := flg.Update(ctx, true); err != nil {
		t.Fatalf("Couldn't update flag: %v", err)
	}

	flg.(*typedFlag[bool]).val = false
	if err := LoadFlags(ctx, false); err != nil {
		t.Fatalf("Couldn't load flags: %v", err)
	}
	if !flg.Value() {
		t.Fatal("Saved flag value was not restored")
	}
}

func TestSetFlag(t *testing.T) {
	ctx := context.Background()
	flg := GenFlag("test.set.int", 1, "int flag")

	if err := SetFlag(ctx, "test.set.int", "7"); err != nil {
		t.Fatalf("Couldn't set flag: %v", err)
	}
	if flg.Value() != 7 {
		t.Fatalf("Expected 7, got %d", flg.Value())
	}
	if err := SetFlag(ctx, "test.set.int", "seven"); err == nil {
		t.Fatal("Non-numeric value should be rejected")
	}
	if err := SetFlag(ctx, "test.set.nope", "1"); err == nil {
		t.Fatal("Unknown flag should be rejected")
	}

	var found bool
	for _, info := range Flags() {
		if info.Name == "test.set.int" {
			found = info.Value == 7
		}
	}
	if !found {
		t.Fatal("Flags() should list the updated value")
	}
}

func TestLoadMissingConfig(t *testing.T) {
	t.Setenv("GIVEMART_DB_DSN", "postgres://example/ledger")
	if err := Load(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("Missing config should fall back to defaults: %v", err)
	}
	if Common.DBDSN != "postgres://example/ledger" {
		t.Fatalf("DSN override not applied, got %q", Common.DBDSN)
	}
	if Server.Port != 8070 {
		t.Fatalf("Expected default port, got %d", Server.Port)
	}
}

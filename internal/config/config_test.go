package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"zero value missing everything", &Config{}, true},
		{"default has no credentials", Default(), true},
		{"type1 credentials only", Apply(WithType1Credentials("12345678", "87654321")), false},
		{"type2 credentials only", Apply(WithType2Credentials("00112233445566778899aabbccddeeff")), false},
		{"empty listen addr", Apply(WithListenAddr(""), WithType2Credentials("x")), false}, // WithListenAddr("") is a no-op, default survives
		{"incomplete type1 pair ignored", Apply(WithType1Credentials("12345678", "")), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyLayersOverDefaults(t *testing.T) {
	cfg := Apply(
		WithListenAddr(":9999"),
		WithType2Credentials("00112233445566778899aabbccddeeff"),
		WithHeartbeatInterval(5*time.Second),
	)
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.FacadeAddr != DefaultFacadeAddr {
		t.Fatalf("FacadeAddr = %q, want default %q", cfg.FacadeAddr, DefaultFacadeAddr)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("HeartbeatInterval = %v", cfg.HeartbeatInterval)
	}
	if cfg.DefaultZoneDeviceClass != DefaultZoneDeviceClass {
		t.Fatalf("DefaultZoneDeviceClass = %q", cfg.DefaultZoneDeviceClass)
	}
}

func TestStoreOpenMissingFileStartsFromDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "dscbridge")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := s.Get()
	if got.ListenAddr != DefaultListenAddr {
		t.Fatalf("ListenAddr = %q, want default", got.ListenAddr)
	}
}

func TestStoreSaveAndReloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "dscbridge")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := Apply(WithListenAddr(":4000"), WithType2Credentials("00112233445566778899aabbccddeeff"))
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2, err := Open(dir, "dscbridge")
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	got := s2.Get()
	if got.ListenAddr != want.ListenAddr {
		t.Fatalf("ListenAddr = %q, want %q", got.ListenAddr, want.ListenAddr)
	}
	if got.Type2AccessCode != want.Type2AccessCode {
		t.Fatalf("Type2AccessCode = %q, want %q", got.Type2AccessCode, want.Type2AccessCode)
	}
}

func TestStoreSavePreservesOtherSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dscbridge.json")
	other := map[string]json.RawMessage{
		"Other.Facade": json.RawMessage(`{"setting":"value"}`),
	}
	raw, err := json.Marshal(other)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s, err := Open(dir, "dscbridge")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(Apply(WithType2Credentials("00112233445566778899aabbccddeeff"))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := doc["Other.Facade"]; !ok {
		t.Fatal("Other.Facade section was dropped by Save")
	}
	if _, ok := doc[SectionKey]; !ok {
		t.Fatalf("%s section missing after Save", SectionKey)
	}
}

func TestStoreReloadMissingSectionKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dscbridge.json")
	if err := os.WriteFile(path, []byte(`{"Other.Facade":{}}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s, err := Open(dir, "dscbridge")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Get().ListenAddr; got != DefaultListenAddr {
		t.Fatalf("ListenAddr = %q, want default", got)
	}
}

// =============================================================================
// server_test.go - Tests for address parsing and target resolution (server.go)
// =============================================================================

package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gonut/nut/internal/config"
)

// =============================================================================
// parseUPSAddress
// =============================================================================

func TestParseUPSAddress(t *testing.T) {
	tests := []struct {
		name string
		want upsAddress
	}{
		{"localhost", upsAddress{Host: "localhost"}},
		{"nas.lan:3494", upsAddress{Host: "nas.lan", Port: 3494}},
		{"dummy-sim@localhost", upsAddress{UPS: "dummy-sim", Host: "localhost"}},
		{"dummy-sim@10.0.0.5:3493", upsAddress{UPS: "dummy-sim", Host: "10.0.0.5", Port: 3493}},
		{"dummy-sim@", upsAddress{UPS: "dummy-sim"}},
		{"ups@[::1]:3493", upsAddress{UPS: "ups", Host: "::1", Port: 3493}},
		{"ups@::1", upsAddress{UPS: "ups", Host: "::1"}},
		{"[fe80::1]", upsAddress{Host: "fe80::1"}},
		{"  rack@host  ", upsAddress{UPS: "rack", Host: "host"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUPSAddress(tt.name)
			if err != nil {
				t.Fatalf("parseUPSAddress(%q) error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("parseUPSAddress(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestParseUPSAddressErrors(t *testing.T) {
	for _, name := range []string{"", "   ", "@host", "ups@host:abc", "host:0", "host:70000"} {
		if _, err := parseUPSAddress(name); err == nil {
			t.Errorf("parseUPSAddress(%q) expected error", name)
		}
	}
}

// =============================================================================
// resolveTarget
// =============================================================================

func twoTargetConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Targets = []config.Target{
		{Name: "rack", Host: "rack.lan", Port: 3493, Timeout: 5 * time.Second, Encryption: "try"},
		{Name: "office", Host: "office.lan", Port: 3500, Timeout: 2 * time.Second, Encryption: "force"},
	}
	return cfg
}

func TestResolveTargetDefaultsToFirst(t *testing.T) {
	target, err := resolveTarget(twoTargetConfig(), &settings{})
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if target.Name != "rack" {
		t.Errorf("target = %q, want rack", target.Name)
	}
}

func TestResolveTargetByName(t *testing.T) {
	target, err := resolveTarget(twoTargetConfig(), &settings{targetName: "office"})
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if target.Host != "office.lan" || target.Port != 3500 || target.Encryption != "force" {
		t.Errorf("target = %+v", target)
	}
}

func TestResolveTargetUnknownName(t *testing.T) {
	_, err := resolveTarget(twoTargetConfig(), &settings{targetName: "garage"})
	if err == nil || !strings.Contains(err.Error(), "garage") {
		t.Errorf("resolveTarget() error = %v", err)
	}
}

func TestResolveTargetNoTargets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Targets = nil

	target, err := resolveTarget(cfg, &settings{})
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	def := config.DefaultTarget()
	if target.Host != def.Host || target.Port != def.Port || target.Encryption != def.Encryption {
		t.Errorf("target = %+v, want the default", target)
	}
}

func TestResolveTargetHostOverride(t *testing.T) {
	s := &settings{host: "dummy-sim@10.1.1.1:4000", hostSet: true}
	target, err := resolveTarget(twoTargetConfig(), s)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if target.Host != "10.1.1.1" || target.Port != 4000 || target.Name != "10.1.1.1" {
		t.Errorf("target = %+v", target)
	}
	if s.ups != "dummy-sim" {
		t.Errorf("default UPS = %q, want dummy-sim", s.ups)
	}
	// Settings the address does not mention come from the configuration.
	if target.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want the configured 5s", target.Timeout)
	}
}

func TestResolveTargetUPSOnlyKeepsHost(t *testing.T) {
	s := &settings{host: "dummy-sim@", hostSet: true}
	target, err := resolveTarget(twoTargetConfig(), s)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if target.Host != "rack.lan" {
		t.Errorf("host = %q, want rack.lan", target.Host)
	}
	if s.ups != "dummy-sim" {
		t.Errorf("default UPS = %q", s.ups)
	}
}

func TestResolveTargetFlagOverrides(t *testing.T) {
	s := &settings{
		port: 4001, portSet: true,
		timeout: time.Second, timeoutSet: true,
		encryption: "off", encryptionSet: true,
	}
	target, err := resolveTarget(twoTargetConfig(), s)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if target.Port != 4001 || target.Timeout != time.Second || target.Encryption != "off" {
		t.Errorf("target = %+v", target)
	}
}

func TestResolveTargetUnsetFlagsIgnored(t *testing.T) {
	s := &settings{port: 1, timeout: time.Millisecond, encryption: "bogus"}
	target, err := resolveTarget(twoTargetConfig(), s)
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if target.Port != 3493 || target.Timeout != 5*time.Second || target.Encryption != "try" {
		t.Errorf("unset flags leaked into %+v", target)
	}
}

func TestResolveTargetInvalidEncryption(t *testing.T) {
	s := &settings{encryption: "sometimes", encryptionSet: true}
	if _, err := resolveTarget(twoTargetConfig(), s); err == nil {
		t.Error("expected error for invalid encryption mode")
	}
}

// =============================================================================
// homeDir
// =============================================================================

func TestHomeDirFollowsHOME(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := homeDir(); got != home {
		t.Errorf("homeDir() = %q, want %q", got, home)
	}
	if !filepath.IsAbs(homeDir()) {
		t.Error("homeDir() should be absolute")
	}
}

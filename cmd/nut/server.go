package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gonut/nut/internal/config"
	"github.com/gonut/nut/nutprotocol"
)

// upsAddress is a parsed "ups@host[:port]" address as used by the NUT tools.
type upsAddress struct {
	UPS  string
	Host string
	Port int // 0 when not given
}

// parseUPSAddress parses "ups@host[:port]", "host[:port]" or "ups@".
// IPv6 hosts need brackets when a port is given: "ups@[::1]:3493".
func parseUPSAddress(s string) (upsAddress, error) {
	var addr upsAddress
	s = strings.TrimSpace(s)
	if s == "" {
		return addr, fmt.Errorf("empty address")
	}

	hostPart := s
	if i := strings.LastIndex(s, "@"); i >= 0 {
		addr.UPS = s[:i]
		hostPart = s[i+1:]
		if addr.UPS == "" {
			return addr, fmt.Errorf("missing UPS name in %q", s)
		}
	}
	if hostPart == "" {
		return addr, nil
	}

	host, portStr, err := net.SplitHostPort(hostPart)
	if err != nil {
		// No port, or a bare IPv6 address.
		addr.Host = strings.Trim(hostPart, "[]")
		return addr, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return addr, fmt.Errorf("invalid port %q in %q", portStr, s)
	}
	addr.Host = host
	addr.Port = port
	return addr, nil
}

// resolveTarget picks the configured target and applies command line
// overrides. Only flags the user actually set are applied.
func resolveTarget(cfg *config.Config, s *settings) (config.Target, error) {
	var target config.Target
	if s.targetName != "" {
		t, ok := cfg.Target(s.targetName)
		if !ok {
			return target, fmt.Errorf("no target named %q in configuration", s.targetName)
		}
		target = t
	} else if len(cfg.Targets) > 0 {
		target = cfg.Targets[0]
	} else {
		target = config.DefaultTarget()
	}

	if s.hostSet {
		addr, err := parseUPSAddress(s.host)
		if err != nil {
			return target, err
		}
		if addr.Host != "" {
			target.Host = addr.Host
			target.Name = addr.Host
		}
		if addr.Port != 0 {
			target.Port = addr.Port
		}
		if addr.UPS != "" {
			s.ups = addr.UPS
		}
	}
	if s.portSet {
		target.Port = s.port
	}
	if s.timeoutSet {
		target.Timeout = s.timeout
	}
	if s.encryptionSet {
		if _, err := nutprotocol.ParseEncryptionMode(s.encryption); err != nil {
			return target, err
		}
		target.Encryption = s.encryption
	}
	return target, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

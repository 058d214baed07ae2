// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/autosit/internal/errors"
)

func TestParseMinimal(t *testing.T) {
	cfg, err := Parse([]string{
		"-with-prefix", "192.168.100.1/30",
		"local.example.org", "remote.example.org",
	})
	require.NoError(t, err)

	assert.Equal(t, "local.example.org", cfg.LocalHostname)
	assert.Equal(t, "remote.example.org", cfg.RemoteHostname)
	assert.Equal(t, DefaultTunName, cfg.TunName)
	assert.Equal(t, []string{"192.168.100.1/30"}, cfg.Prefixes)
	assert.Equal(t, ModeForward, cfg.IPv4Mode)
	assert.Equal(t, ModeForward, cfg.IPv6Mode)
	assert.Equal(t, DefaultDoHURL, cfg.DoHURL)
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Empty(t, cfg.IPv4Routes)
	assert.Empty(t, cfg.IPv6Routes)
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]string{
		"-tun-name", "sit1",
		"-with-prefix", "192.168.100.1/30",
		"-with-prefix", "fd00::1/64",
		"-with-ipv4-route", "10.20.0.0/16",
		"-with-ipv4-route", "10.30.0.0/16",
		"-with-ipv6-route", "fd00:20::/32",
		"-ipv4-mode", "nat",
		"-ipv6-mode", "forward",
		"-state-dir", "/var/lib/autosit",
		"a.example.org", "b.example.org",
	})
	require.NoError(t, err)

	assert.Equal(t, "sit1", cfg.TunName)
	assert.Equal(t, []string{"192.168.100.1/30", "fd00::1/64"}, cfg.Prefixes)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.20.0.0/16"),
		netip.MustParsePrefix("10.30.0.0/16"),
	}, cfg.IPv4Routes)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("fd00:20::/32")}, cfg.IPv6Routes)
	assert.Equal(t, ModeNAT, cfg.IPv4Mode)
	assert.Equal(t, ModeForward, cfg.IPv6Mode)
	assert.Equal(t, "/var/lib/autosit", cfg.StateDir)
}

func TestParseMissingHostnames(t *testing.T) {
	_, err := Parse([]string{"-with-prefix", "192.168.100.1/30"})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseOneHostname(t *testing.T) {
	_, err := Parse([]string{"-with-prefix", "192.168.100.1/30", "only.example.org"})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseMissingPrefix(t *testing.T) {
	_, err := Parse([]string{"a.example.org", "b.example.org"})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseBadMode(t *testing.T) {
	_, err := Parse([]string{
		"-with-prefix", "192.168.100.1/30",
		"-ipv4-mode", "masquerade",
		"a.example.org", "b.example.org",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseRouteFamilyMismatch(t *testing.T) {
	_, err := Parse([]string{
		"-with-prefix", "192.168.100.1/30",
		"-with-ipv4-route", "fd00::/32",
		"a.example.org", "b.example.org",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	_, err = Parse([]string{
		"-with-prefix", "192.168.100.1/30",
		"-with-ipv6-route", "10.0.0.0/8",
		"a.example.org", "b.example.org",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseBadRoutePrefix(t *testing.T) {
	_, err := Parse([]string{
		"-with-prefix", "192.168.100.1/30",
		"-with-ipv4-route", "not-a-prefix",
		"a.example.org", "b.example.org",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autosit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
local_hostname: file-local.example.org
remote_hostname: file-remote.example.org
tun_name: sitfile
prefixes:
  - 192.168.50.1/30
ipv4_routes:
  - 172.16.0.0/12
ipv4_mode: nat
state_dir: /var/lib/autosit
`), 0644))

	cfg, err := Parse([]string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, "file-local.example.org", cfg.LocalHostname)
	assert.Equal(t, "file-remote.example.org", cfg.RemoteHostname)
	assert.Equal(t, "sitfile", cfg.TunName)
	assert.Equal(t, []string{"192.168.50.1/30"}, cfg.Prefixes)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("172.16.0.0/12")}, cfg.IPv4Routes)
	assert.Equal(t, ModeNAT, cfg.IPv4Mode)
	assert.Equal(t, "/var/lib/autosit", cfg.StateDir)
}

func TestParseFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autosit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
local_hostname: file-local.example.org
remote_hostname: file-remote.example.org
tun_name: sitfile
prefixes:
  - 192.168.50.1/30
ipv4_mode: nat
`), 0644))

	cfg, err := Parse([]string{
		"-config", path,
		"-tun-name", "sitflag",
		"-ipv4-mode", "forward",
		"-with-prefix", "192.168.60.1/30",
		"flag-local.example.org", "flag-remote.example.org",
	})
	require.NoError(t, err)

	assert.Equal(t, "flag-local.example.org", cfg.LocalHostname)
	assert.Equal(t, "sitflag", cfg.TunName)
	assert.Equal(t, ModeForward, cfg.IPv4Mode)
	assert.Equal(t, []string{"192.168.60.1/30"}, cfg.Prefixes)
}

func TestParseConfigFileMissing(t *testing.T) {
	_, err := Parse([]string{"-config", "/nonexistent/autosit.yaml"})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseBadInterfacePrefix(t *testing.T) {
	_, err := Parse([]string{
		"-with-prefix", "192.168.100.1", // missing prefix length
		"a.example.org", "b.example.org",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

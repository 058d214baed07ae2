// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config holds the invocation surface of the autosit agent:
// two positional endpoint hostnames plus flags for the tunnel name,
// interface prefixes, routes and per-family packet-handling modes.
// A YAML file can supply the same values; explicitly set flags win.
package config

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"grimm.is/autosit/internal/errors"
)

// Mode selects the packet-handling policy for one address family.
type Mode string

const (
	ModeForward Mode = "forward"
	ModeNAT     Mode = "nat"
)

// Defaults for the flag surface.
const (
	DefaultTunName  = "autosit"
	DefaultDoHURL   = "https://cloudflare-dns.com/dns-query"
	DefaultStateDir = "/tmp"
)

// Config is the fully validated run configuration.
type Config struct {
	LocalHostname  string
	RemoteHostname string

	TunName  string
	Prefixes []string // CIDR strings, applied to the interface in this order

	IPv4Routes []netip.Prefix
	IPv6Routes []netip.Prefix

	IPv4Mode Mode
	IPv6Mode Mode

	DoHURL    string
	DoHFormat string // "json" or "wire"
	StateDir  string
}

// fileConfig mirrors the flag surface for the optional YAML file.
type fileConfig struct {
	LocalHostname  string   `yaml:"local_hostname"`
	RemoteHostname string   `yaml:"remote_hostname"`
	TunName        string   `yaml:"tun_name"`
	Prefixes       []string `yaml:"prefixes"`
	IPv4Routes     []string `yaml:"ipv4_routes"`
	IPv6Routes     []string `yaml:"ipv6_routes"`
	IPv4Mode       string   `yaml:"ipv4_mode"`
	IPv6Mode       string   `yaml:"ipv6_mode"`
	DoHURL         string   `yaml:"doh_url"`
	DoHFormat      string   `yaml:"doh_format"`
	StateDir       string   `yaml:"state_dir"`
}

// multiFlag collects repeated occurrences of a string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// Parse builds a Config from command-line arguments (without the program
// name). Values from a -config YAML file are applied first; flags that were
// explicitly set override them.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("autosit", flag.ContinueOnError)

	var (
		configFile = fs.String("config", "", "optional YAML configuration file")
		tunName    = fs.String("tun-name", DefaultTunName, "name of the tunnel interface")
		ipv4Mode   = fs.String("ipv4-mode", string(ModeForward), "packet handling mode for IPv4 (forward|nat)")
		ipv6Mode   = fs.String("ipv6-mode", string(ModeForward), "packet handling mode for IPv6 (forward|nat)")
		dohURL     = fs.String("doh-url", DefaultDoHURL, "DNS-over-HTTPS endpoint")
		dohFormat  = fs.String("doh-format", "json", "DoH transport format (json|wire)")
		stateDir   = fs.String("state-dir", DefaultStateDir, "directory holding tunnel state records")

		prefixes   multiFlag
		ipv4Routes multiFlag
		ipv6Routes multiFlag
	)
	fs.Var(&prefixes, "with-prefix", "assign an IP prefix to the interface (repeatable)")
	fs.Var(&ipv4Routes, "with-ipv4-route", "add a route for this IPv4 prefix (repeatable)")
	fs.Var(&ipv6Routes, "with-ipv6-route", "add a route for this IPv6 prefix (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to parse arguments")
	}

	cfg := &Config{
		TunName:   DefaultTunName,
		IPv4Mode:  ModeForward,
		IPv6Mode:  ModeForward,
		DoHURL:    DefaultDoHURL,
		DoHFormat: "json",
		StateDir:  DefaultStateDir,
	}

	var fileV4Routes, fileV6Routes []string
	if *configFile != "" {
		fc, err := loadFile(*configFile)
		if err != nil {
			return nil, err
		}
		applyFile(cfg, fc)
		fileV4Routes = fc.IPv4Routes
		fileV6Routes = fc.IPv6Routes
	}

	// Explicitly set flags override file values.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["tun-name"] {
		cfg.TunName = *tunName
	}
	if set["ipv4-mode"] {
		cfg.IPv4Mode = Mode(*ipv4Mode)
	}
	if set["ipv6-mode"] {
		cfg.IPv6Mode = Mode(*ipv6Mode)
	}
	if set["doh-url"] {
		cfg.DoHURL = *dohURL
	}
	if set["doh-format"] {
		cfg.DoHFormat = *dohFormat
	}
	if set["state-dir"] {
		cfg.StateDir = *stateDir
	}
	if set["with-prefix"] {
		cfg.Prefixes = prefixes
	}

	v4Routes := fileV4Routes
	if set["with-ipv4-route"] {
		v4Routes = ipv4Routes
	}
	v6Routes := fileV6Routes
	if set["with-ipv6-route"] {
		v6Routes = ipv6Routes
	}

	var err error
	if cfg.IPv4Routes, err = parseRoutes(v4Routes, true); err != nil {
		return nil, err
	}
	if cfg.IPv6Routes, err = parseRoutes(v6Routes, false); err != nil {
		return nil, err
	}

	// Positional hostnames; a config file may supply them instead.
	rest := fs.Args()
	switch len(rest) {
	case 0:
		// hostnames must come from the file
	case 2:
		cfg.LocalHostname = rest[0]
		cfg.RemoteHostname = rest[1]
	default:
		return nil, errors.Errorf(errors.KindValidation,
			"expected exactly two positional arguments (local and remote hostname), got %d", len(rest))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to read config file %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to parse config file %s", path)
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.LocalHostname != "" {
		cfg.LocalHostname = fc.LocalHostname
	}
	if fc.RemoteHostname != "" {
		cfg.RemoteHostname = fc.RemoteHostname
	}
	if fc.TunName != "" {
		cfg.TunName = fc.TunName
	}
	if len(fc.Prefixes) > 0 {
		cfg.Prefixes = fc.Prefixes
	}
	if fc.IPv4Mode != "" {
		cfg.IPv4Mode = Mode(fc.IPv4Mode)
	}
	if fc.IPv6Mode != "" {
		cfg.IPv6Mode = Mode(fc.IPv6Mode)
	}
	if fc.DoHURL != "" {
		cfg.DoHURL = fc.DoHURL
	}
	if fc.DoHFormat != "" {
		cfg.DoHFormat = fc.DoHFormat
	}
	if fc.StateDir != "" {
		cfg.StateDir = fc.StateDir
	}
}

func parseRoutes(routes []string, wantV4 bool) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, r := range routes {
		p, err := netip.ParsePrefix(r)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "invalid route prefix %q", r)
		}
		if p.Addr().Is4() != wantV4 {
			family := "IPv6"
			if wantV4 {
				family = "IPv4"
			}
			return nil, errors.Errorf(errors.KindValidation, "route %q is not an %s prefix", r, family)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.LocalHostname == "" || c.RemoteHostname == "" {
		return errors.New(errors.KindValidation, "local and remote hostnames are required")
	}
	if c.TunName == "" {
		return errors.New(errors.KindValidation, "tunnel interface name must not be empty")
	}
	if len(c.Prefixes) == 0 {
		return errors.New(errors.KindValidation, "at least one -with-prefix is required")
	}
	for _, p := range c.Prefixes {
		if _, err := netip.ParsePrefix(p); err != nil {
			return errors.Wrapf(err, errors.KindValidation, "invalid interface prefix %q", p)
		}
	}
	if err := validateMode("ipv4-mode", c.IPv4Mode); err != nil {
		return err
	}
	if err := validateMode("ipv6-mode", c.IPv6Mode); err != nil {
		return err
	}
	if c.DoHFormat != "json" && c.DoHFormat != "wire" {
		return errors.Errorf(errors.KindValidation, "invalid doh-format %q: must be json or wire", c.DoHFormat)
	}
	return nil
}

func validateMode(name string, m Mode) error {
	if m != ModeForward && m != ModeNAT {
		return errors.Errorf(errors.KindValidation, "invalid %s %q: must be %s or %s", name, m, ModeForward, ModeNAT)
	}
	return nil
}

// Usage returns a one-line synopsis for error output.
func Usage() string {
	return fmt.Sprintf("usage: autosit [flags] <local-hostname> <remote-hostname> (default tunnel %q)", DefaultTunName)
}

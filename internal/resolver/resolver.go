// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package resolver looks up the IPv4 addresses of tunnel endpoints over
// DNS-over-HTTPS. A single best-effort query per call: no retry, no cache,
// no DNSSEC validation.
package resolver

import (
	"context"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"grimm.is/autosit/internal/errors"
)

// Resolver resolves a hostname to its IPv4 address.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (netip.Addr, error)
}

const defaultTimeout = 5 * time.Second

// New returns a Resolver for the given DoH transport format.
// "json" speaks the application/dns-json API, "wire" speaks RFC 8484.
func New(format, baseURL string) (Resolver, error) {
	switch format {
	case "json":
		return NewJSONResolver(baseURL), nil
	case "wire":
		return NewWireResolver(baseURL), nil
	default:
		return nil, errors.Errorf(errors.KindValidation, "unknown DoH format %q", format)
	}
}

// rcodeName renders a DNS response code for error messages.
func rcodeName(code int) string {
	if s, ok := dns.RcodeToString[code]; ok {
		return s
	}
	return "RCODE" + strconv.Itoa(code)
}

// parseIPv4 parses a strict dotted-quad IPv4 address.
func parseIPv4(hostname, s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, errors.Errorf(errors.KindResolution,
			"malformed answer for %s: %q is not an IPv4 address", hostname, s)
	}
	return addr, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

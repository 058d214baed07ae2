// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package resolver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/netip"

	"github.com/miekg/dns"

	"grimm.is/autosit/internal/errors"
)

// WireResolver queries a DoH endpoint using the RFC 8484 wire format
// (application/dns-message over HTTP POST).
type WireResolver struct {
	url    string
	client *http.Client
}

// NewWireResolver creates a resolver against the given RFC 8484 endpoint.
func NewWireResolver(url string) *WireResolver {
	return &WireResolver{
		url:    url,
		client: httpClient(),
	}
}

// Resolve issues a single A query and returns the first A record's address.
func (r *WireResolver) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(hostname), dns.TypeA)
	// RFC 8484 wants a zero message ID so responses are cacheable.
	m.Id = 0

	packed, err := m.Pack()
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "failed to pack DNS query for %s", hostname)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(packed))
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "failed to build DoH request for %s", hostname)
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")

	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "DoH query for %s failed", hostname)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, errors.Errorf(errors.KindResolution,
			"DoH query for %s returned HTTP %d", hostname, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "failed to read DoH response for %s", hostname)
	}

	reply := new(dns.Msg)
	if err := reply.Unpack(raw); err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "failed to unpack DoH response for %s", hostname)
	}

	if reply.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, errors.Errorf(errors.KindResolution,
			"DNS lookup for %s failed with status %d (%s)", hostname, reply.Rcode, rcodeName(reply.Rcode))
	}

	for _, rr := range reply.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue // CNAMEs precede the address records
		}
		return parseIPv4(hostname, a.A.String())
	}
	return netip.Addr{}, errors.Errorf(errors.KindResolution, "no A records for %s", hostname)
}

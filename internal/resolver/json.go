// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"

	"grimm.is/autosit/internal/errors"
)

// JSONResolver queries a DoH endpoint speaking the application/dns-json API
// (Cloudflare's dns-query contract: integer Status, Answer records with
// string data).
type JSONResolver struct {
	baseURL string
	client  *http.Client
}

// NewJSONResolver creates a resolver against the given dns-json endpoint.
func NewJSONResolver(baseURL string) *JSONResolver {
	return &JSONResolver{
		baseURL: baseURL,
		client:  httpClient(),
	}
}

type jsonAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Data string `json:"data"`
}

type jsonResponse struct {
	Status int          `json:"Status"`
	Answer []jsonAnswer `json:"Answer"`
}

// Resolve issues a single A query and returns the first answer's address.
func (r *JSONResolver) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL, nil)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "failed to build DoH request for %s", hostname)
	}
	q := req.URL.Query()
	q.Set("name", hostname)
	q.Set("type", "A")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "DoH query for %s failed", hostname)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, errors.Errorf(errors.KindResolution,
			"DoH query for %s returned HTTP %d", hostname, resp.StatusCode)
	}

	var body jsonResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindResolution, "failed to decode DoH response for %s", hostname)
	}

	if body.Status != 0 {
		return netip.Addr{}, errors.Errorf(errors.KindResolution,
			"DNS lookup for %s failed with status %d (%s)", hostname, body.Status, rcodeName(body.Status))
	}
	if len(body.Answer) == 0 {
		return netip.Addr{}, errors.Errorf(errors.KindResolution, "no A records for %s", hostname)
	}

	return parseIPv4(hostname, body.Answer[0].Data)
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package agent orchestrates one reconciliation run: resolve both endpoint
// hostnames, decide whether the tunnel has drifted, and if so rebuild the
// interface and reapply its addressing, routing and packet-handling policy.
package agent

import (
	"context"
	"log"
	"net/netip"

	"grimm.is/autosit/internal/config"
	"grimm.is/autosit/internal/resolver"
	"grimm.is/autosit/internal/state"
)

// Store is the tunnel record persistence the agent depends on.
type Store interface {
	Load(tunName string) (state.Record, error)
	Save(tunName string, rec state.Record) error
}

// NetworkManager drives the kernel's link, address and route configuration.
type NetworkManager interface {
	LinkExists(name string) bool
	DeleteLink(name string) error
	CreateTunnel(name string, local, remote netip.Addr) error
	SetLinkUp(name string) error
	AddAddress(name, prefix string) error
	AddRoute(name string, dst netip.Prefix) error
}

// FirewallManager applies the per-family packet-handling policy.
type FirewallManager interface {
	Apply(tunName string, v4, v6 config.Mode) error
}

// Outcome is the terminal result of one successful run.
type Outcome string

const (
	OutcomeReconciled Outcome = "reconciled"
	OutcomeHealthy    Outcome = "healthy-noop"
)

// Agent ties the resolver, state store and configurators together.
type Agent struct {
	cfg      *config.Config
	resolver resolver.Resolver
	store    Store
	network  NetworkManager
	firewall FirewallManager
	logger   *log.Logger
}

// New creates an agent. A nil logger falls back to the default logger.
func New(cfg *config.Config, res resolver.Resolver, store Store, network NetworkManager, firewall FirewallManager, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		cfg:      cfg,
		resolver: res,
		store:    store,
		network:  network,
		firewall: firewall,
		logger:   logger,
	}
}

// Run performs one reconciliation pass. Resolution failures abort before
// any state or kernel interaction.
func (a *Agent) Run(ctx context.Context) (Outcome, error) {
	local, err := a.resolver.Resolve(ctx, a.cfg.LocalHostname)
	if err != nil {
		return "", err
	}
	remote, err := a.resolver.Resolve(ctx, a.cfg.RemoteHostname)
	if err != nil {
		return "", err
	}
	a.logger.Printf("[Agent] local host address: %s", local)
	a.logger.Printf("[Agent] remote host address: %s", remote)

	current := state.Record{Local: local, Remote: remote}

	need, reason := a.needsReconciliation(current)
	if !need {
		a.logger.Printf("[Agent] interface %s is healthy, nothing to do", a.cfg.TunName)
		return OutcomeHealthy, nil
	}

	a.logger.Printf("[Agent] (re)creating interface %s: %s", a.cfg.TunName, reason)
	if err := a.reconcile(current); err != nil {
		return "", err
	}
	return OutcomeReconciled, nil
}

// reconcile rebuilds the tunnel in fixed order. The state record is written
// first so a failed run leaves drift visible to the next one rather than a
// stale healthy record. No rollback on partial failure; the next run's
// drift check is the retry contract.
func (a *Agent) reconcile(current state.Record) error {
	tun := a.cfg.TunName

	a.logger.Printf("[Agent] saving tunnel addresses for %s", tun)
	if err := a.store.Save(tun, current); err != nil {
		return err
	}

	// Clear a possibly stale interface first; failure expected when none exists.
	if err := a.network.DeleteLink(tun); err != nil {
		a.logger.Printf("[Agent] ignoring teardown failure for %s: %v", tun, err)
	}

	a.logger.Printf("[Agent] creating interface %s", tun)
	if err := a.network.CreateTunnel(tun, current.Local, current.Remote); err != nil {
		return err
	}

	a.logger.Printf("[Agent] bringing up interface %s", tun)
	if err := a.network.SetLinkUp(tun); err != nil {
		return err
	}

	for _, prefix := range a.cfg.Prefixes {
		a.logger.Printf("[Agent] adding prefix %s to interface %s", prefix, tun)
		if err := a.network.AddAddress(tun, prefix); err != nil {
			return err
		}
	}

	for _, route := range a.cfg.IPv4Routes {
		a.logger.Printf("[Agent] adding IPv4 route %s", route)
		if err := a.network.AddRoute(tun, route); err != nil {
			return err
		}
	}
	for _, route := range a.cfg.IPv6Routes {
		a.logger.Printf("[Agent] adding IPv6 route %s", route)
		if err := a.network.AddRoute(tun, route); err != nil {
			return err
		}
	}

	return a.firewall.Apply(tun, a.cfg.IPv4Mode, a.cfg.IPv6Mode)
}

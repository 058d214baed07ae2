// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall applies the per-family packet-handling policy for the
// tunnel interface: either plain forwarding (sysctl toggle plus accept
// rules) or NAT (masquerade on egress). Rules live in a per-tunnel
// nftables table per family that is rebuilt from scratch on every apply,
// so repeated reconciliations never stack duplicates.
package firewall

import (
	"log"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"

	"grimm.is/autosit/internal/config"
	"grimm.is/autosit/internal/errors"
	"grimm.is/autosit/internal/network"
)

// Forwarding toggles per address family.
const (
	sysctlIPv4Forward = "/proc/sys/net/ipv4/ip_forward"
	sysctlIPv6Forward = "/proc/sys/net/ipv6/conf/all/forwarding"
)

// Conn is the subset of *nftables.Conn the manager uses.
type Conn interface {
	AddTable(t *nftables.Table) *nftables.Table
	DelTable(t *nftables.Table)
	AddChain(c *nftables.Chain) *nftables.Chain
	AddRule(r *nftables.Rule) *nftables.Rule
	Flush() error
}

// Manager programs the kernel's nftables ruleset for one tunnel.
type Manager struct {
	conn   Conn
	sys    network.SystemController
	logger *log.Logger
}

// NewManager creates a firewall manager over a fresh nftables connection.
func NewManager(logger *log.Logger) (*Manager, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, "failed to open nftables connection")
	}
	return NewManagerWithDeps(conn, &network.RealSystemController{}, logger), nil
}

// NewManagerWithDeps creates a firewall manager with injected dependencies.
func NewManagerWithDeps(conn Conn, sys network.SystemController, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{conn: conn, sys: sys, logger: logger}
}

// Apply installs the IPv4 policy, then the IPv6 policy, for tunName.
func (m *Manager) Apply(tunName string, v4, v6 config.Mode) error {
	if err := m.applyFamily(tunName, nftables.TableFamilyIPv4, v4, sysctlIPv4Forward); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to apply IPv4 %s policy for %s", v4, tunName)
	}
	if err := m.applyFamily(tunName, nftables.TableFamilyIPv6, v6, sysctlIPv6Forward); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to apply IPv6 %s policy for %s", v6, tunName)
	}
	return nil
}

func (m *Manager) applyFamily(tunName string, family nftables.TableFamily, mode config.Mode, forwardSysctl string) error {
	famName := "IPv4"
	if family == nftables.TableFamilyIPv6 {
		famName = "IPv6"
	}

	// Add-delete-add: the leading add guarantees the delete cannot fail on
	// a missing table, and the trailing add leaves a fresh empty one.
	table := &nftables.Table{Family: family, Name: "autosit_" + tunName}
	m.conn.AddTable(table)
	m.conn.DelTable(table)
	tbl := m.conn.AddTable(table)

	switch mode {
	case config.ModeNAT:
		m.logger.Printf("[Firewall] enabling %s NAT (masquerade) on %s", famName, tunName)
		post := m.conn.AddChain(&nftables.Chain{
			Name:     "postrouting",
			Table:    tbl,
			Type:     nftables.ChainTypeNAT,
			Hooknum:  nftables.ChainHookPostrouting,
			Priority: nftables.ChainPriorityNATSource,
		})
		m.conn.AddRule(&nftables.Rule{
			Table: tbl,
			Chain: post,
			Exprs: []expr.Any{
				&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
				&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifname(tunName)},
				&expr.Masq{},
			},
		})

	case config.ModeForward:
		m.logger.Printf("[Firewall] enabling %s forwarding through %s", famName, tunName)
		if err := m.sys.WriteSysctl(forwardSysctl, "1"); err != nil {
			return errors.Wrapf(err, errors.KindConfiguration, "failed to enable %s forwarding", famName)
		}
		fwd := m.conn.AddChain(&nftables.Chain{
			Name:     "forward",
			Table:    tbl,
			Type:     nftables.ChainTypeFilter,
			Hooknum:  nftables.ChainHookForward,
			Priority: nftables.ChainPriorityFilter,
		})
		m.conn.AddRule(&nftables.Rule{
			Table: tbl,
			Chain: fwd,
			Exprs: []expr.Any{
				&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
				&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifname(tunName)},
				&expr.Verdict{Kind: expr.VerdictAccept},
			},
		})
		m.conn.AddRule(&nftables.Rule{
			Table: tbl,
			Chain: fwd,
			Exprs: []expr.Any{
				&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
				&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifname(tunName)},
				&expr.Verdict{Kind: expr.VerdictAccept},
			},
		})
	}

	return m.conn.Flush()
}

// ifname encodes an interface name the way nftables compares it:
// 16 bytes, null padded.
func ifname(s string) []byte {
	b := make([]byte, 16)
	copy(b, s)
	return b
}

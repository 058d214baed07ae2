// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package network drives the kernel's link, address and route tables for
// the tunnel interface. All netlink and sysctl access goes through injected
// interfaces so tests can substitute fakes without privileges.
package network

import (
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/autosit/internal/errors"
)

// tunnelTTL is the fixed hop limit on the outer IPv4 header.
const tunnelTTL = 255

// Netlinker abstracts the netlink operations the manager needs.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	ParseAddr(s string) (*netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
	RouteAdd(route *netlink.Route) error
}

// SystemController abstracts sysctl reads and writes.
type SystemController interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
}

// Manager handles tunnel interface configuration via netlink.
type Manager struct {
	nl Netlinker
}

// NewManagerWithDeps creates a manager with an injected Netlinker.
func NewManagerWithDeps(nl Netlinker) *Manager {
	return &Manager{nl: nl}
}

// LinkExists probes whether the named interface currently exists.
// Lookup failures of any kind count as absent; the caller's answer to a
// missing interface is to recreate it, which also corrects a broken one.
func (m *Manager) LinkExists(name string) bool {
	_, err := m.nl.LinkByName(name)
	return err == nil
}

// DeleteLink removes the named interface if it exists.
func (m *Manager) DeleteLink(name string) error {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "no interface %s to delete", name)
	}
	if err := m.nl.LinkDel(link); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to delete interface %s", name)
	}
	return nil
}

// CreateTunnel creates a SIT tunnel bound to the given outer addresses.
// Proto is left zero so the device carries any payload protocol over IPv4.
func (m *Manager) CreateTunnel(name string, local, remote netip.Addr) error {
	tun := &netlink.Sittun{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		Local:     net.IP(local.AsSlice()),
		Remote:    net.IP(remote.AsSlice()),
		Ttl:       tunnelTTL,
	}
	if err := m.nl.LinkAdd(tun); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to create tunnel interface %s", name)
	}
	return nil
}

// SetLinkUp brings the named interface administratively up.
func (m *Manager) SetLinkUp(name string) error {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to find interface %s", name)
	}
	if err := m.nl.LinkSetUp(link); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to bring up interface %s", name)
	}
	return nil
}

// AddAddress assigns a CIDR prefix to the named interface.
func (m *Manager) AddAddress(name, prefix string) error {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to find interface %s", name)
	}
	addr, err := m.nl.ParseAddr(prefix)
	if err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "invalid address prefix %q", prefix)
	}
	if err := m.nl.AddrAdd(link, addr); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to add prefix %s to interface %s", prefix, name)
	}
	return nil
}

// AddRoute installs a route for dst with the named interface as egress.
func (m *Manager) AddRoute(name string, dst netip.Prefix) error {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to find interface %s", name)
	}
	family := unix.AF_INET6
	if dst.Addr().Is4() {
		family = unix.AF_INET
	}
	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Family:    family,
		Dst:       prefixToIPNet(dst),
	}
	if err := m.nl.RouteAdd(route); err != nil {
		return errors.Wrapf(err, errors.KindConfiguration, "failed to add route %s via interface %s", dst, name)
	}
	return nil
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	masked := p.Masked()
	return &net.IPNet{
		IP:   net.IP(masked.Addr().AsSlice()),
		Mask: net.CIDRMask(masked.Bits(), masked.Addr().BitLen()),
	}
}

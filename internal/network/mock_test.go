// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a testify mock over the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	link, _ := args.Get(0).(netlink.Link)
	return link, args.Error(1)
}

func (m *MockNetlinker) LinkAdd(link netlink.Link) error {
	return m.Called(link).Error(0)
}

func (m *MockNetlinker) LinkDel(link netlink.Link) error {
	return m.Called(link).Error(0)
}

func (m *MockNetlinker) LinkSetUp(link netlink.Link) error {
	return m.Called(link).Error(0)
}

func (m *MockNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	args := m.Called(s)
	addr, _ := args.Get(0).(*netlink.Addr)
	return addr, args.Error(1)
}

func (m *MockNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return m.Called(link, addr).Error(0)
}

func (m *MockNetlinker) RouteAdd(route *netlink.Route) error {
	return m.Called(route).Error(0)
}

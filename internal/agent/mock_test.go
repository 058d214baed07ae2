// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import (
	"context"
	"net/netip"

	"github.com/stretchr/testify/mock"

	"grimm.is/autosit/internal/config"
	"grimm.is/autosit/internal/state"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	args := m.Called(hostname)
	addr, _ := args.Get(0).(netip.Addr)
	return addr, args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(tunName string) (state.Record, error) {
	args := m.Called(tunName)
	rec, _ := args.Get(0).(state.Record)
	return rec, args.Error(1)
}

func (m *MockStore) Save(tunName string, rec state.Record) error {
	return m.Called(tunName, rec).Error(0)
}

type MockNetwork struct {
	mock.Mock
}

func (m *MockNetwork) LinkExists(name string) bool {
	return m.Called(name).Get(0).(bool)
}

func (m *MockNetwork) DeleteLink(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockNetwork) CreateTunnel(name string, local, remote netip.Addr) error {
	return m.Called(name, local, remote).Error(0)
}

func (m *MockNetwork) SetLinkUp(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockNetwork) AddAddress(name, prefix string) error {
	return m.Called(name, prefix).Error(0)
}

func (m *MockNetwork) AddRoute(name string, dst netip.Prefix) error {
	return m.Called(name, dst).Error(0)
}

type MockFirewall struct {
	mock.Mock
}

func (m *MockFirewall) Apply(tunName string, v4, v6 config.Mode) error {
	return m.Called(tunName, v4, v6).Error(0)
}

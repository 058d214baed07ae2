// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package state persists the last-applied endpoint address pair for each
// tunnel interface. One record per tunnel name, stored as two
// newline-separated IPv4 addresses (local, then remote). No locking:
// concurrent runs against the same tunnel name are out of scope.
package state

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"grimm.is/autosit/internal/errors"
)

// Record is the persisted address pair for one tunnel.
// Both fields are written together or not at all.
type Record struct {
	Local  netip.Addr
	Remote netip.Addr
}

func (r Record) String() string {
	return fmt.Sprintf("local=%s remote=%s", r.Local, r.Remote)
}

// Store reads and writes tunnel records under a fixed directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the record location for the given tunnel name.
func (s *Store) Path(tunName string) string {
	return filepath.Join(s.dir, "autosit_"+tunName)
}

// Load reads the record for tunName. A missing file is KindNotFound;
// anything that does not parse as two IPv4 lines is KindCorruptState.
func (s *Store) Load(tunName string) (Record, error) {
	data, err := os.ReadFile(s.Path(tunName))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.Errorf(errors.KindNotFound, "no state record for tunnel %s", tunName)
		}
		return Record{}, errors.Wrapf(err, errors.KindCorruptState, "failed to read state record for tunnel %s", tunName)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 2 {
		return Record{}, errors.Errorf(errors.KindCorruptState,
			"state record for tunnel %s has %d line(s), want 2", tunName, len(lines))
	}

	local, err := parseIPv4Line(lines[0])
	if err != nil {
		return Record{}, errors.Wrapf(err, errors.KindCorruptState, "bad local address in state record for tunnel %s", tunName)
	}
	remote, err := parseIPv4Line(lines[1])
	if err != nil {
		return Record{}, errors.Wrapf(err, errors.KindCorruptState, "bad remote address in state record for tunnel %s", tunName)
	}

	return Record{Local: local, Remote: remote}, nil
}

// Save overwrites the record for tunName. Not atomic against concurrent
// readers; single-writer usage is assumed.
func (s *Store) Save(tunName string, rec Record) error {
	content := rec.Local.String() + "\n" + rec.Remote.String()
	if err := os.WriteFile(s.Path(tunName), []byte(content), 0644); err != nil {
		return errors.Wrapf(err, errors.KindStateWrite, "failed to write state record for tunnel %s", tunName)
	}
	return nil
}

func parseIPv4Line(line string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", addr)
	}
	return addr, nil
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"os"
	"strings"
)

// DefaultSystemController is the default RealSystemController instance.
var DefaultSystemController SystemController = &RealSystemController{}

// RealSystemController reads and writes sysctl values via /proc/sys.
type RealSystemController struct{}

// ReadSysctl reads a sysctl value from the specified path.
func (c *RealSystemController) ReadSysctl(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSysctl writes a sysctl value to the specified path.
// Reads first to avoid unnecessary writes.
func (c *RealSystemController) WriteSysctl(path, value string) error {
	current, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(current)) == value {
		return nil
	}
	return os.WriteFile(path, []byte(value), 0644)
}

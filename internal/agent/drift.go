// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import (
	"fmt"

	"grimm.is/autosit/internal/errors"
	"grimm.is/autosit/internal/state"
)

// needsReconciliation decides whether the tunnel must be rebuilt. Three
// checks in order, short-circuiting on the first hit: the interface is
// absent, the state record is missing or unreadable, or the resolved
// addresses differ from the record. A missing or corrupt record is a
// reconcile signal, not a failure; without it there is no way to validate
// freshness. Pure decision: no side effects beyond the two reads.
func (a *Agent) needsReconciliation(current state.Record) (bool, string) {
	tun := a.cfg.TunName

	if !a.network.LinkExists(tun) {
		return true, fmt.Sprintf("interface %s does not exist", tun)
	}

	rec, err := a.store.Load(tun)
	if err != nil {
		switch errors.GetKind(err) {
		case errors.KindNotFound:
			return true, fmt.Sprintf("no state record for %s", tun)
		default:
			return true, fmt.Sprintf("state record for %s unreadable: %v", tun, err)
		}
	}

	if rec.Local != current.Local || rec.Remote != current.Remote {
		return true, fmt.Sprintf("interface addresses changed (recorded %s, resolved %s)", rec, current)
	}

	return false, ""
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command autosit reconciles a SIT tunnel whose endpoints are named by DNS.
// It resolves both endpoint hostnames over DoH, compares them against the
// last-applied record for the tunnel interface, and rebuilds the interface,
// its addresses, routes and packet-handling policy only when something
// drifted. Intended to run periodically from a scheduler; one pass per
// invocation.
package main

import (
	"context"
	"log"
	"os"

	"grimm.is/autosit/internal/agent"
	"grimm.is/autosit/internal/config"
	"grimm.is/autosit/internal/firewall"
	"grimm.is/autosit/internal/network"
	"grimm.is/autosit/internal/resolver"
	"grimm.is/autosit/internal/state"
)

func main() {
	log.SetFlags(0)
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Printf("autosit: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		log.Println(config.Usage())
		return err
	}

	res, err := resolver.New(cfg.DoHFormat, cfg.DoHURL)
	if err != nil {
		return err
	}

	fw, err := firewall.NewManager(log.Default())
	if err != nil {
		return err
	}

	a := agent.New(cfg, res, state.NewStore(cfg.StateDir), network.NewManager(), fw, log.Default())

	outcome, err := a.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("autosit: %s", outcome)
	return nil
}

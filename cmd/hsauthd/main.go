// main.go - hsauth voting-authority binary.
// Copyright (C) 2023  Yawning Angel, Masala
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package main implements the hsauth directory-authority daemon: the
// shared-random-value commit-and-reveal coordinator, run as a standalone
// process.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opaquenet/hsauth/authority/config"
	"github.com/opaquenet/hsauth/authority/server"
	"github.com/opaquenet/hsauth/common"
	"github.com/opaquenet/hsauth/internal/log"
)

// Config holds the command-line configuration for hsauthd.
type Config struct {
	ConfigFile   string
	IdentityFile string
}

func newRootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "hsauthd",
		Short: "Shared-random-value directory-authority daemon",
		Long: `hsauthd runs the commit-and-reveal shared-random-value protocol a set of
directory authorities cooperate on: each voting round it generates or
ingests commit/reveal lines, persists its state to disk, and rotates in a
fresh shared random value at the end of every protocol run.`,
		Example: `  # Start the daemon with a config file and identity key
  hsauthd --config /etc/hsauth/authority.toml --identity /etc/hsauth/identity.key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.ConfigFile, "config", "f", "hsauth-authority.toml",
		"path to the authority configuration file (TOML format)")
	cmd.Flags().StringVarP(&cfg.IdentityFile, "identity", "i", "identity.key",
		"path to this authority's base64-encoded Ed25519 identity seed")

	return cmd
}

func main() {
	common.ExecuteWithFang(newRootCommand())
}

func loadIdentity(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file %q: %w", path, err)
	}
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity file %q is not a base64 Ed25519 seed", path)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func run(cfg Config) error {
	authorityCfg, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config file %q: %w", cfg.ConfigFile, err)
	}

	identity, err := loadIdentity(cfg.IdentityFile)
	if err != nil {
		return err
	}

	backend, err := log.New(authorityCfg.Logging.File, authorityCfg.Logging.Level, authorityCfg.Logging.Disable)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	coordinator := server.NewCoordinator(authorityCfg, identity, backend)
	defer coordinator.Close()
	if err := coordinator.Restore(); err != nil {
		backend.GetLogger("hsauthd").Noticef("starting with fresh state: %v", err)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-ch
		cancel()
	}()

	logger := backend.GetLogger("hsauthd")
	logger.Notice("hsauthd started")

	for {
		wait, err := coordinator.AdvanceRound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Notice("shutting down")
				return nil
			}
			logger.Warningf("round advance failed: %v", err)
		}
		select {
		case <-ctx.Done():
			logger.Notice("shutting down")
			return nil
		case <-time.After(wait):
		}
	}
}

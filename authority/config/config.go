// config.go - hsauth voting authority server configuration.
// Copyright (C) 2017  Yawning Angel.
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

// Package config implements the hsauth authority daemon's TOML
// configuration: voting-protocol timing, peer authorities, and the node-set
// queries the intro/rendezvous state machines consult.
package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/net/idna"
)

const (
	defaultAddress       = ":62472"
	defaultLogLevel      = "NOTICE"
	defaultVotingSeconds = 3600
	defaultNumIntro      = 3
)

var defaultLogging = Logging{Level: defaultLogLevel}

// Logging is the daemon logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool
	// File specifies the log file; stdout is used if empty.
	File string
	// Level specifies the log level.
	Level string
}

func (l *Logging) validate() error {
	lvl := strings.ToUpper(l.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level %q is invalid", l.Level)
	}
	l.Level = lvl
	return nil
}

// Parameters holds the environment/configuration inputs this core consumes
// but does not itself parse out of torrc.
type Parameters struct {
	// VotingIntervalSeconds is the consensus voting interval V.
	VotingIntervalSeconds uint64
	// TestingV3AuthVotingStartOffset shifts round boundaries for test
	// networks so a full protocol run doesn't take 24 hours.
	TestingV3AuthVotingStartOffset int64
	// NumIntroPoints is the number of introduction points a service
	// publishes per descriptor.
	NumIntroPoints int
	// IsSingleOnion disables the client-side anonymizing rendezvous hop.
	IsSingleOnion bool
	// MaxStreamsPerRendCircuit caps AP streams multiplexed onto one
	// rendezvous circuit.
	MaxStreamsPerRendCircuit int
	// ExcludeNodes and StrictNodes are opaque node-set queries passed
	// through to the node-selection layer unparsed.
	ExcludeNodes []string
	StrictNodes  bool
}

func (p *Parameters) applyDefaults() {
	if p.VotingIntervalSeconds == 0 {
		p.VotingIntervalSeconds = defaultVotingSeconds
	}
	if p.NumIntroPoints <= 0 {
		p.NumIntroPoints = defaultNumIntro
	}
}

func (p *Parameters) validate() error {
	if p.VotingIntervalSeconds == 0 {
		return errors.New("config: Parameters: VotingIntervalSeconds must be nonzero")
	}
	return nil
}

// Debug holds knobs that should never need changing outside of testing.
type Debug struct {
	// GenerateOnly halts and cleans up the server right after long term
	// key generation.
	GenerateOnly bool
}

// Authority is a peer directory authority's configuration entry.
type Authority struct {
	// Identifier is the human-readable identifier for the peer (FQDN).
	Identifier string
	// IdentityPublicKey is the peer's base64-encoded Ed25519 identity key.
	IdentityPublicKey string
	// Addresses are listener addresses, e.g. tcp://1.2.3.4:1234.
	Addresses []string

	identityPublicKey ed25519.PublicKey
}

// PublicKey returns the decoded Ed25519 identity key. Validate must have
// been called first.
func (a *Authority) PublicKey() ed25519.PublicKey { return a.identityPublicKey }

// Validate parses and checks the Authority configuration.
func (a *Authority) Validate() error {
	raw, err := base64.StdEncoding.DecodeString(a.IdentityPublicKey)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("config: Authority %q: invalid IdentityPublicKey", a.Identifier)
	}
	a.identityPublicKey = ed25519.PublicKey(raw)

	if len(a.Addresses) == 0 {
		return fmt.Errorf("config: Authority %q: no Addresses", a.Identifier)
	}
	for _, v := range a.Addresses {
		u, err := url.Parse(v)
		if err != nil {
			return fmt.Errorf("config: Authority %q: Address %q is invalid: %v", a.Identifier, v, err)
		}
		if u.Port() == "" {
			return fmt.Errorf("config: Authority %q: Address %q must contain a port", a.Identifier, v)
		}
		if _, err := idna.Lookup.ToASCII(u.Hostname()); err != nil {
			return fmt.Errorf("config: Authority %q: Address %q has invalid hostname: %v", a.Identifier, v, err)
		}
	}
	return nil
}

// Server holds this authority instance's own identity and listener.
type Server struct {
	// Identifier is this authority's human-readable identifier.
	Identifier string
	// Addresses this authority listens on.
	Addresses []string
	// DataDir is the directory sr-state and other persisted state lives
	// under.
	DataDir string
	// IdentityPublicKey is this authority's own base64 Ed25519 identity
	// key, must match one Authorities entry.
	IdentityPublicKey string
}

func (s *Server) validate() error {
	if s.Identifier == "" {
		return errors.New("config: Server: Identifier is not set")
	}
	if s.DataDir == "" {
		return errors.New("config: Server: DataDir is not set")
	}
	if len(s.Addresses) == 0 {
		s.Addresses = []string{defaultAddress}
	}
	return nil
}

// Config is the top-level hsauth authority daemon configuration.
type Config struct {
	Server      *Server
	Authorities []*Authority
	Logging     *Logging
	Parameters  *Parameters
	Debug       *Debug
}

// ValidateAuthorities checks that ownIdentity appears among cfg.Authorities
// (directory authorities must be their own peer).
func (cfg *Config) ValidateAuthorities(ownIdentity ed25519.PublicKey) error {
	for _, a := range cfg.Authorities {
		if a.PublicKey().Equal(ownIdentity) {
			return nil
		}
	}
	return errors.New("config: Authorities section must contain self")
}

// FixupAndValidate applies defaults and validates cfg. Most callers should
// use Load or LoadFile instead.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Server == nil {
		return errors.New("config: no Server block was present")
	}
	if cfg.Logging == nil {
		cfg.Logging = &defaultLogging
	}
	if cfg.Parameters == nil {
		cfg.Parameters = &Parameters{}
	}
	if cfg.Debug == nil {
		cfg.Debug = &Debug{}
	}

	if err := cfg.Server.validate(); err != nil {
		return err
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	cfg.Parameters.applyDefaults()
	if err := cfg.Parameters.validate(); err != nil {
		return err
	}

	for _, a := range cfg.Authorities {
		if err := a.Validate(); err != nil {
			return err
		}
	}

	ownRaw, err := base64.StdEncoding.DecodeString(cfg.Server.IdentityPublicKey)
	if err != nil || len(ownRaw) != ed25519.PublicKeySize {
		return errors.New("config: Server: invalid IdentityPublicKey")
	}
	return cfg.ValidateAuthorities(ed25519.PublicKey(ownRaw))
}

// Load parses and validates the provided buffer as a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

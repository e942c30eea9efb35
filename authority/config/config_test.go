package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func genAuthorityTOML(t *testing.T, id string, pub ed25519.PublicKey) string {
	t.Helper()
	return "[[Authorities]]\n" +
		"Identifier = \"" + id + "\"\n" +
		"IdentityPublicKey = \"" + base64.StdEncoding.EncodeToString(pub) + "\"\n" +
		"Addresses = [\"tcp://127.0.0.1:12345\"]\n"
}

func TestLoadValidConfig(t *testing.T) {
	require := require.New(t)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	doc := "[Server]\n" +
		"Identifier = \"auth1\"\n" +
		"DataDir = \"/tmp/hsauth\"\n" +
		"IdentityPublicKey = \"" + pubB64 + "\"\n\n" +
		genAuthorityTOML(t, "auth1", pub)

	cfg, err := Load([]byte(doc))
	require.NoError(err)
	require.Equal("auth1", cfg.Server.Identifier)
	require.Equal(uint64(defaultVotingSeconds), cfg.Parameters.VotingIntervalSeconds)
	require.Equal(defaultNumIntro, cfg.Parameters.NumIntroPoints)
	require.Equal(defaultLogLevel, cfg.Logging.Level)
}

func TestLoadRejectsMissingServer(t *testing.T) {
	require := require.New(t)
	_, err := Load([]byte(""))
	require.Error(err)
}

func TestLoadRejectsSelfNotInAuthorities(t *testing.T) {
	require := require.New(t)

	own, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	doc := "[Server]\n" +
		"Identifier = \"auth1\"\n" +
		"DataDir = \"/tmp/hsauth\"\n" +
		"IdentityPublicKey = \"" + base64.StdEncoding.EncodeToString(own) + "\"\n\n" +
		genAuthorityTOML(t, "auth2", other)

	_, err = Load([]byte(doc))
	require.Error(err)
}

func TestAuthorityValidateRejectsBadAddress(t *testing.T) {
	require := require.New(t)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	a := &Authority{
		Identifier:        "auth1",
		IdentityPublicKey: base64.StdEncoding.EncodeToString(pub),
		Addresses:         []string{"tcp://127.0.0.1"},
	}
	require.Error(a.Validate())
}

func TestLoggingValidateDefaultsEmptyLevel(t *testing.T) {
	require := require.New(t)
	l := &Logging{}
	require.NoError(l.validate())
	require.Equal(defaultLogLevel, l.Level)
}

func TestLoggingValidateRejectsUnknownLevel(t *testing.T) {
	require := require.New(t)
	l := &Logging{Level: "VERBOSE"}
	require.Error(l.validate())
}

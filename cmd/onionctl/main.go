// Package main implements onionctl, an operator tool for the v3 onion
// service identity layer: generating identity keys, encoding an identity
// key's onion address, and deriving a period's blinded key and onion address.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opaquenet/hsauth/common"
	"github.com/opaquenet/hsauth/hsident"
)

const (
	defaultPeriodLengthMinutes = 1440
	defaultRotationOffsetMin   = 12 * 60
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionctl",
		Short: "Operator tool for v3 onion-service identity keys and addresses",
	}
	cmd.AddCommand(newGenKeyCommand())
	cmd.AddCommand(newAddressCommand())
	cmd.AddCommand(newBlindCommand())
	return cmd
}

func main() {
	common.ExecuteWithFang(newRootCommand())
}

func newGenKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a master Ed25519 identity keypair and print its onion address",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			addr, err := hsident.EncodeOnionAddress(pub)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "identity_seed: %s\n", base64.StdEncoding.EncodeToString(priv.Seed()))
			fmt.Fprintf(cmd.OutOrStdout(), "identity_public: %s\n", base64.StdEncoding.EncodeToString(pub))
			fmt.Fprintf(cmd.OutOrStdout(), "onion_address: %s\n", addr)
			return nil
		},
	}
}

func newAddressCommand() *cobra.Command {
	var pubB64 string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Encode or decode a v3 onion address",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				pub, err := hsident.DecodeOnionAddress(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "identity_public: %s\n", base64.StdEncoding.EncodeToString(pub))
				return nil
			}
			raw, err := base64.StdEncoding.DecodeString(pubB64)
			if err != nil || len(raw) != ed25519.PublicKeySize {
				return fmt.Errorf("onionctl: --pubkey must be a base64 Ed25519 public key")
			}
			addr, err := hsident.EncodeOnionAddress(ed25519.PublicKey(raw))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&pubB64, "pubkey", "", "base64 Ed25519 identity public key to encode (omit to decode an address argument instead)")
	return cmd
}

func newBlindCommand() *cobra.Command {
	var pubB64 string
	var periodNum int64
	cmd := &cobra.Command{
		Use:   "blind",
		Short: "Derive the blinded public key and onion address for a time period",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(pubB64)
			if err != nil || len(raw) != ed25519.PublicKeySize {
				return fmt.Errorf("onionctl: --pubkey must be a base64 Ed25519 public key")
			}
			identity := ed25519.PublicKey(raw)

			tpn := periodNum
			if tpn < 0 {
				tpn = hsident.TimePeriodNum(time.Now(), defaultPeriodLengthMinutes, defaultRotationOffsetMin)
			}
			periodLengthSeconds := uint64(defaultPeriodLengthMinutes * 60)

			blinded, err := hsident.BlindPublicKey(identity, uint64(tpn), periodLengthSeconds)
			if err != nil {
				return err
			}
			addr, err := hsident.EncodeOnionAddress(blinded)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "time_period_num: %d\n", tpn)
			fmt.Fprintf(cmd.OutOrStdout(), "blinded_public: %s\n", base64.StdEncoding.EncodeToString(blinded))
			fmt.Fprintf(cmd.OutOrStdout(), "blinded_onion_address: %s\n", addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&pubB64, "pubkey", "", "base64 Ed25519 master identity public key")
	cmd.Flags().Int64Var(&periodNum, "period", -1, "time period number (defaults to the current period)")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

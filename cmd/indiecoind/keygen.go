package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/fernandolobato/indiecoin/walletaddr"
)

func newKeygenCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a new address and save its private key to a keystore file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = defaultKeystorePath()
			}
			addr, err := walletaddr.Generate()
			if err != nil {
				return fmt.Errorf("keygen: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
				return fmt.Errorf("keygen: %w", err)
			}
			if err := os.WriteFile(out, []byte(addr.PrivateHex()), 0o600); err != nil {
				return fmt.Errorf("keygen: write keystore: %w", err)
			}
			fmt.Printf("public key (hex):    %s\n", addr.PublicHex())
			fmt.Printf("public key (base58): %s\n", base58.Encode([]byte(addr.PublicHex())))
			fmt.Printf("keystore written to: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "keystore file to write (default ~/.indiecoin/wallet.key)")
	return cmd
}

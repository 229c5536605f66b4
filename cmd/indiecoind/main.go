// Command indiecoind runs an indiecoin node: the chain store, the peer
// listener, and optionally the miner.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "indiecoind",
		Short: "indiecoin peer-to-peer node",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newKeygenCommand())
	root.AddCommand(newPeerCommand())
	return root
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernandolobato/indiecoin/p2p"
)

func newPeerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "query or edit a running indiecoin node's peer table",
	}
	cmd.AddCommand(newPeerListCommand())
	cmd.AddCommand(newPeerAddCommand())
	cmd.AddCommand(newPeerRemoveCommand())
	return cmd
}

func newPeerListCommand() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list the peers a running node knows about",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := splitHostPort(target)
			if err != nil {
				return err
			}
			caller := p2p.New("indiecoind-cli", 1, newLogger())
			replies, err := caller.ConnectAndSend(host, port, p2p.TypeListPeers, nil, true)
			if err != nil {
				return fmt.Errorf("peer list: %w", err)
			}
			for _, reply := range replies {
				fmt.Println(string(reply.Payload))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "127.0.0.1:6666", "node address to query")
	return cmd
}

func newPeerAddCommand() *cobra.Command {
	var target, peerAddr string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "insert a peer into a running node's peer table",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := splitHostPort(target)
			if err != nil {
				return err
			}
			peerHost, peerPort, err := splitHostPort(peerAddr)
			if err != nil {
				return fmt.Errorf("peer add: %w", err)
			}
			caller := p2p.New("indiecoind-cli", 1, newLogger())
			payload := []byte(fmt.Sprintf("%s %s %d", peerAddr, peerHost, peerPort))
			replies, err := caller.ConnectAndSend(host, port, p2p.TypeInsertPeer, payload, true)
			if err != nil {
				return fmt.Errorf("peer add: %w", err)
			}
			for _, reply := range replies {
				fmt.Println(string(reply.Payload))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "127.0.0.1:6666", "node address to edit")
	cmd.Flags().StringVar(&peerAddr, "peer", "", "host:port of the peer to insert")
	cmd.MarkFlagRequired("peer")
	return cmd
}

func newPeerRemoveCommand() *cobra.Command {
	var target, peerID string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "remove a peer from a running node's peer table",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := splitHostPort(target)
			if err != nil {
				return err
			}
			caller := p2p.New("indiecoind-cli", 1, newLogger())
			replies, err := caller.ConnectAndSend(host, port, p2p.TypePeerQuit, []byte(peerID), true)
			if err != nil {
				return fmt.Errorf("peer remove: %w", err)
			}
			for _, reply := range replies {
				fmt.Println(string(reply.Payload))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "127.0.0.1:6666", "node address to edit")
	cmd.Flags().StringVar(&peerID, "peer", "", "id of the peer to remove")
	cmd.MarkFlagRequired("peer")
	return cmd
}

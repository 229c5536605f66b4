package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vrecan/death/v3"

	"github.com/fernandolobato/indiecoin/chain"
	"github.com/fernandolobato/indiecoin/miner"
	"github.com/fernandolobato/indiecoin/node"
	"github.com/fernandolobato/indiecoin/p2p"
	"github.com/fernandolobato/indiecoin/store"
	"github.com/fernandolobato/indiecoin/walletaddr"
)

func newRunCommand() *cobra.Command {
	var (
		bind         string
		port         int
		maxPeers     int
		initialPeers string
		mine         bool
		dataDir      string
		keystore     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run an indiecoin node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			cfg.BindPFlag("bind", cmd.Flags().Lookup("bind"))
			cfg.BindPFlag("port", cmd.Flags().Lookup("port"))
			cfg.BindPFlag("max-peers", cmd.Flags().Lookup("max-peers"))
			cfg.BindPFlag("initial-peers", cmd.Flags().Lookup("initial-peers"))
			cfg.BindPFlag("mine", cmd.Flags().Lookup("mine"))

			return runNode(runOptions{
				bind:         cfg.GetString("bind"),
				port:         cfg.GetInt("port"),
				maxPeers:     cfg.GetInt("max-peers"),
				initialPeers: cfg.GetString("initial-peers"),
				mine:         cfg.GetBool("mine"),
				dataDir:      dataDir,
				keystore:     keystore,
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "0.0.0.0", "address to bind the inbound listener to")
	cmd.Flags().IntVar(&port, "port", 6666, "port to bind the inbound listener to")
	cmd.Flags().IntVar(&maxPeers, "max-peers", 50, "maximum number of peers to keep in the peer table")
	cmd.Flags().StringVar(&initialPeers, "initial-peers", "", "comma-separated host:port list to bootstrap from")
	cmd.Flags().BoolVar(&mine, "mine", false, "mine new blocks, rewarding this node's own keystore address")
	cmd.Flags().StringVar(&dataDir, "data-dir", defaultDataDirectory(), "directory for the chain store")
	cmd.Flags().StringVar(&keystore, "keystore", defaultKeystorePath(), "keystore file used when --mine is set")

	return cmd
}

type runOptions struct {
	bind         string
	port         int
	maxPeers     int
	initialPeers string
	mine         bool
	dataDir      string
	keystore     string
}

func runNode(opts runOptions) error {
	log := newLogger()
	defer log.Sync()

	st, err := store.Open(opts.dataDir, log)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer st.Close()

	genesis, err := st.EnsureGenesis()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Infow("chain ready", "genesis_hash", genesis.Hash)

	chainFacade := chain.New(st)

	peerID := net.JoinHostPort(opts.bind, strconv.Itoa(opts.port))
	peer := p2p.New(peerID, opts.maxPeers, log)
	if err := peer.Listen(opts.bind, opts.port); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	var m *miner.Miner
	var rewardAddress string
	if opts.mine {
		addr, err := loadOrCreateMinerAddress(opts.keystore)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		rewardAddress = addr.PublicHex()
		m = miner.New(log)
		go m.Run()
		log.Infow("mining enabled", "reward_address_prefix", rewardAddress[:16])
	}

	n := node.New(peer, st, chainFacade, m, rewardAddress, log)

	initial, err := parseInitialPeers(opts.initialPeers)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if len(initial) > 0 {
		n.Bootstrap(initial)
	}

	if m != nil {
		n.SeedMiner()
		go n.MineLoop()
	}

	log.Infow("node running", "bind", opts.bind, "port", opts.port, "max_peers", opts.maxPeers)

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		log.Infow("shutting down")
		if m != nil {
			m.Shutdown()
		}
		_ = peer.Close()
		_ = st.Close()
	})
	return nil
}

func loadOrCreateMinerAddress(keystorePath string) (*walletaddr.Address, error) {
	data, err := os.ReadFile(keystorePath)
	if err == nil {
		return walletaddr.FromPrivateHex(string(data))
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	addr, genErr := walletaddr.Generate()
	if genErr != nil {
		return nil, fmt.Errorf("generate miner address: %w", genErr)
	}
	if mkErr := os.MkdirAll(filepath.Dir(keystorePath), 0o700); mkErr != nil {
		return nil, fmt.Errorf("create keystore directory: %w", mkErr)
	}
	if writeErr := os.WriteFile(keystorePath, []byte(addr.PrivateHex()), 0o600); writeErr != nil {
		return nil, fmt.Errorf("write keystore: %w", writeErr)
	}
	return addr, nil
}


package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/fernandolobato/indiecoin/p2p"
)

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}

// parseInitialPeers parses a "host1:port1,host2:port2" flag value into peer
// table entries keyed by their own address.
func parseInitialPeers(csv string) ([]p2p.Info, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var peers []p2p.Info
	for _, entry := range strings.Split(csv, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		host, port, err := splitHostPort(entry)
		if err != nil {
			return nil, err
		}
		peers = append(peers, p2p.Info{ID: entry, Host: host, Port: port})
	}
	return peers, nil
}

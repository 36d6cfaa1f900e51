// Command dmutexd is a small demonstration binary wiring a dmutex.Mutex
// to a real TCPTransport. It is example scaffolding: the library's
// public contract lives entirely in pkg/dmutex, and never depends on
// this command or on cobra.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgsilva/dmutex/pkg/dmutex"
	"github.com/rgsilva/dmutex/pkg/dmutex/core"
	"github.com/rgsilva/dmutex/pkg/dmutex/definition"
	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		name     string
		bind     string
		advertise string
		peers    []string
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "dmutexd",
		Short: "Run a single peer of a named distributed mutex over TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(name, bind, advertise, peers, debug)
		},
	}

	cmd.Flags().StringVar(&name, "name", "default", "mutex name shared by every peer")
	cmd.Flags().StringVar(&bind, "bind", "0.0.0.0:7070", "address to listen on")
	cmd.Flags().StringVar(&advertise, "advertise", "", "address to advertise to peers (host:port); defaults to --bind when not a wildcard")
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "peer address host:port, may be repeated")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	return cmd
}

func run(name, bind, advertiseAddr string, peers []string, debug bool) error {
	logger := definition.NewDefaultLogger(name)
	logger.ToggleDebug(debug)

	var advertise *net.TCPAddr
	if advertiseAddr != "" {
		resolved, err := net.ResolveTCPAddr("tcp", advertiseAddr)
		if err != nil {
			return fmt.Errorf("resolving --advertise: %w", err)
		}
		advertise = resolved
	}

	transport, err := core.NewTCPTransport(bind, advertise, 2, 5*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	defer transport.Close()

	identity, err := types.ParseIdentity(transport.LocalAddress())
	if err != nil {
		return fmt.Errorf("resolving own identity from %s: %w", transport.LocalAddress(), err)
	}

	m := dmutex.New(name, identity, transport, logger)
	for _, peer := range peers {
		if err := m.AddPeer(peer); err != nil {
			return fmt.Errorf("adding peer %s: %w", peer, err)
		}
	}

	m.OnGranted(func(types.Event) { logger.Info("granted the lock") })
	m.OnDenied(func(types.Event) { logger.Info("request denied") })
	m.OnReleased(func(types.Event) { logger.Info("lock released") })
	m.OnHolderLost(func(e types.Event) { logger.Warnf("holder %s lost, lock permanently unavailable", e.Peer) })

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		m.Pump()
	}
	return nil
}

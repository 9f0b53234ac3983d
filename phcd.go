// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/phcsuite/phcd/mnmgr"
	"github.com/phcsuite/phcd/mnsync"
)

// probeInterval is how often the enabled entries are re-probed for port
// reachability while the daemon runs standalone.
const probeInterval = 30 * time.Minute

// cfg is the loaded configuration, shared across the main package.
var cfg *config

// offlineChain is the chain view used while no chain backend is attached:
// collateral is assumed intact and block data unknown.  Embedding nodes
// replace it with their chain state; standalone the daemon still maintains
// its cached registry, expiry sweeps and reachability probes.
type offlineChain struct{}

func (offlineChain) CollateralUnspent(op wire.OutPoint) bool { return true }
func (offlineChain) InputAge(op wire.OutPoint) int32         { return 0 }
func (offlineChain) BlockHash(height int64) (*chainhash.Hash, bool) {
	return nil, false
}

// noopLedger reports no payment history, which keeps oldest-first
// selection stable while no payment accounting is attached.
type noopLedger struct{}

func (noopLedger) SecondsSincePayment(op wire.OutPoint) int64 { return 0 }

// probeHandler periodically re-probes the advertised ports of enabled
// entries and records the result.  It must be run as a goroutine.
func probeHandler(registry *mnmgr.Manager, prober mnsync.Prober,
	quit chan struct{}) {

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, e := range registry.Entries() {
				if !e.IsEnabled() {
					continue
				}
				open := prober.PortOpen(&e.Addr)
				registry.WithEntry(e.OutPoint,
					func(stored *mnmgr.Entry) {
						stored.PortOpen = open
					})
			}

		case <-quit:
			return
		}
	}
}

// phcdMain is the real main function for phcd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func phcdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	phcdLog.Infof("Version %s", version())

	registry := mnmgr.New(&mnmgr.Config{
		Chain:       offlineChain{},
		Payments:    noopLedger{},
		Net:         activeNetParams.Net,
		MinProtocol: activeNetParams.MinMasternodeProtocol,
		DataDir:     cfg.DataDir,
	})
	registry.Start()
	defer func() {
		registry.Stop()
		phcdLog.Infof("Registry stopped: %s", registry.String())
	}()

	prober := mnsync.NewTCPProber(cfg.dial)
	quit := make(chan struct{})
	go probeHandler(registry, prober, quit)
	defer close(quit)

	// Wait for an interrupt signal before shutting down.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	phcdLog.Info("Shutting down...")

	return nil
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := phcdMain(); err != nil {
		os.Exit(1)
	}
}

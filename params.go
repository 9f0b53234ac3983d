// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// phcMainNet and friends are the network magics of the supported networks.
const (
	phcMainNet wire.BitcoinNet = 0x11cd8f6a
	phcTestNet wire.BitcoinNet = 0x2b5ca07f
	phcRegNet  wire.BitcoinNet = 0xe3c19d44
)

// minMasternodeProtocol is the minimum protocol version a masternode must
// advertise to be counted by this release.
const minMasternodeProtocol = 70047

// masternodeCollateral is the number of whole coins locked behind a
// masternode.
const masternodeCollateral = 10000

// mainNetChainParams and friends define the address encoding parameters
// per network.  Only the fields the masternode core consumes are populated.
var (
	mainNetChainParams = chaincfg.Params{
		Name:             "mainnet",
		Net:              phcMainNet,
		DefaultPort:      "20060",
		PubKeyHashAddrID: 0x37,
		ScriptHashAddrID: 0x08,
		PrivateKeyID:     0xb7,
	}

	testNetChainParams = chaincfg.Params{
		Name:             "testnet",
		Net:              phcTestNet,
		DefaultPort:      "30060",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		PrivateKeyID:     0xef,
	}

	regNetChainParams = chaincfg.Params{
		Name:             "regtest",
		Net:              phcRegNet,
		DefaultPort:      "40060",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		PrivateKeyID:     0xef,
	}
)

// params wraps the chain parameters with the masternode specific knobs the
// rest of the code needs.
type params struct {
	*chaincfg.Params

	// MinMasternodeProtocol is the protocol floor applied to
	// announcements and sweeps.
	MinMasternodeProtocol int32

	// Collateral is the masternode collateral in whole coins.
	Collateral int64
}

var (
	mainNetParams = params{
		Params:                &mainNetChainParams,
		MinMasternodeProtocol: minMasternodeProtocol,
		Collateral:            masternodeCollateral,
	}

	testNetParams = params{
		Params:                &testNetChainParams,
		MinMasternodeProtocol: minMasternodeProtocol,
		Collateral:            masternodeCollateral,
	}

	regNetParams = params{
		Params:                &regNetChainParams,
		MinMasternodeProtocol: minMasternodeProtocol,
		Collateral:            masternodeCollateral,
	}
)

// activeNetParams is a pointer to the parameters specific to the currently
// active network.
var activeNetParams = &mainNetParams

// netName returns the name used when referring to a network, which doubles
// as the per-network data subdirectory.
func netName(p *params) string {
	return p.Name
}

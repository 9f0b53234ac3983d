// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/phcsuite/phcd/mnmgr"
	"github.com/phcsuite/phcd/mnwire"
)

// ChainBackend is the view of the blockchain the gossip protocol consumes.
// The node's chain state implements it.
type ChainBackend interface {
	// BestHeight returns the height of the main chain tip.
	BestHeight() int64

	// BlockHash returns the hash of the main chain block at the given
	// height, or false when the height is unknown.
	BlockHash(height int64) (*chainhash.Hash, bool)

	// BlockTime returns the timestamp of the main chain block at the
	// given height, or false when the height is unknown.
	BlockTime(height int64) (int64, bool)

	// TxBlockHeight returns the height of the block containing the given
	// transaction, or false when the transaction is not in the main
	// chain.
	TxBlockHeight(txid *chainhash.Hash) (int64, bool)

	// InputAge returns the number of confirmations of the transaction
	// that created the outpoint, or 0 when unknown.
	InputAge(op wire.OutPoint) int32

	// RequiredCollateral returns the masternode collateral, in whole
	// coins, required at the given block height.
	RequiredCollateral(height int64) int64

	// AcceptDryRun reports whether the passed transaction would be
	// accepted to the memory pool without committing it.  When it would
	// not, the second return value carries the DoS score of the
	// rejection, zero for non-punishable rejections.
	AcceptDryRun(tx *wire.MsgTx) (bool, int)

	// AdjustedTime returns the network adjusted unix time.
	AdjustedTime() int64
}

// Signer verifies operator signatures and collateral ownership.
type Signer interface {
	// VerifyMessage verifies that sig is a valid signature over msg by
	// the private key behind pubKey.
	VerifyMessage(pubKey, sig []byte, msg string) error

	// OwnsOutPoint reports whether pubKey is the owner of the output
	// referenced by op.
	OwnsOutPoint(pubKey []byte, op wire.OutPoint) bool
}

// Peer represents the connection a message arrived on.
type Peer interface {
	// ID returns the peer manager's identifier for the connection, used
	// for misbehavior reporting.
	ID() int32

	// NA returns the peer's network address.
	NA() *mnwire.NetAddress

	// PushMessage queues a message to be sent to the peer.
	PushMessage(msg mnwire.Message)
}

// PeerNotifier exposes the peer manager operations the gossip layer needs.
// The callbacks are invoked while the dispatch lock is held and must not
// reenter the registry.
type PeerNotifier interface {
	// BroadcastMessage queues a message to every connected peer.
	BroadcastMessage(msg mnwire.Message)

	// AddKnownAddress inserts a masternode service address into the
	// address book with the given penalty window.
	AddKnownAddress(addr, src *mnwire.NetAddress, penalty time.Duration)

	// Misbehaving raises the ban score of the identified peer.
	Misbehaving(id int32, score int)
}

// ActiveIdentity is the local masternode identity, when the node is
// configured as one.  The gossip layer notifies it when the node's own
// announcement arrives from the network.
type ActiveIdentity interface {
	// IsMasternode reports whether the node is configured as a
	// masternode.
	IsMasternode() bool

	// HasCollateral reports whether the local identity already knows its
	// collateral outpoint.
	HasCollateral() bool

	// OperatorKey returns the serialized operator public key.
	OperatorKey() []byte

	// RemoteActivate is called when an announcement signed by the local
	// operator key is admitted, completing hot/cold activation.
	RemoteActivate(op wire.OutPoint, addr *mnwire.NetAddress)
}

// Prober tests whether a masternode's advertised port accepts connections.
type Prober interface {
	PortOpen(addr *mnwire.NetAddress) bool
}

// Config is a configuration struct used to initialize a new gossip
// manager.
type Config struct {
	// Registry is the masternode registry the protocol maintains.
	Registry *mnmgr.Manager

	Chain  ChainBackend
	Signer Signer
	Peers  PeerNotifier

	// Active is the local masternode identity.  It may be nil for nodes
	// that are not masternodes.
	Active ActiveIdentity

	// Prober tests advertised ports.  When nil, ports are assumed open.
	Prober Prober

	// AddrParams supplies the address encoding used by the public key
	// shape checks.
	AddrParams *chaincfg.Params

	// CollateralScript is the well known script the synthetic collateral
	// spend pays to.
	CollateralScript []byte

	// ProtocolVersion is the protocol version of the local node.
	ProtocolVersion int32

	// MinProtocol is the minimum protocol version accepted from
	// announcements.
	MinProtocol int32

	// MainNet gates the list-request abuse scoring, which is only
	// applied on the public production network.
	MainNet bool

	// IsSynced gates gossip processing until the blockchain is caught
	// up.  When nil, processing is always on.
	IsSynced func() bool
}

// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnmgr

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/phcsuite/phcd/mnwire"
)

const (
	// ExpirySeconds is how long a masternode may go unseen before it is
	// marked expired.
	ExpirySeconds = 65 * 60

	// ListAskInterval is the minimum time between full list requests to
	// or from the same peer.
	ListAskInterval = 3 * 60 * 60

	// EntryAskInterval is the minimum time between requests for the same
	// missing entry.
	EntryAskInterval = 15 * 60
)

// ActiveState identifies the lifecycle state of a registry entry.
type ActiveState byte

// The states an entry moves through.  A fresh entry starts pre-enabled and
// is promoted to enabled by its first check.  Remove and collateral-spent
// entries are deleted by the next sweep; expired entries stay in the
// registry but are not enabled.
const (
	StatePreEnabled ActiveState = iota
	StateEnabled
	StateExpired
	StateRemove
	StateCollateralSpent
)

// String returns the ActiveState in human-readable form.
func (s ActiveState) String() string {
	switch s {
	case StatePreEnabled:
		return "PRE_ENABLED"
	case StateEnabled:
		return "ENABLED"
	case StateExpired:
		return "EXPIRED"
	case StateRemove:
		return "REMOVE"
	case StateCollateralSpent:
		return "COLLATERAL_SPENT"
	}
	return "UNKNOWN"
}

// Variant identifies which announcement format an entry was created from.
type Variant byte

// VariantLegacy entries carry no reward fields and answer list requests
// with dsee.  VariantExtended entries carry a reward script and percentage
// and answer with dsee+.
const (
	VariantLegacy Variant = iota
	VariantExtended
)

// ChainView is the minimal view of the blockchain the registry needs: the
// spent status and age of collateral outpoints, and block hashes for the
// ranking algorithm.
type ChainView interface {
	// CollateralUnspent returns whether the outpoint still holds the
	// required collateral, typically via a mempool dry run of a synthetic
	// spend.
	CollateralUnspent(op wire.OutPoint) bool

	// InputAge returns the number of confirmations of the transaction
	// that created the outpoint, or 0 when unknown.
	InputAge(op wire.OutPoint) int32

	// BlockHash returns the hash of the main chain block at the given
	// height, or false when the height is unknown.
	BlockHash(height int64) (*chainhash.Hash, bool)
}

// PaymentLedger reports payment recency for the oldest-first selection used
// by the payment rotation.
type PaymentLedger interface {
	SecondsSincePayment(op wire.OutPoint) int64
}

// Entry is one masternode as seen by the local registry, keyed by the
// collateral outpoint.  All fields are exported for serialization; callers
// outside this package receive copies and mutate stored entries only
// through the Manager.
type Entry struct {
	OutPoint        wire.OutPoint
	Addr            mnwire.NetAddress
	CollateralKey   []byte
	OperatorKey     []byte
	Sig             []byte
	SigTime         int64
	LastSeen        int64
	LastPingTime    int64
	LastVoteTime    int64
	VoteValue       int32
	ProtocolVersion int32
	PortOpen        bool
	RewardAddress   []byte
	RewardPercent   int32
	Variant         Variant
	State           ActiveState
}

// NewEntry returns an entry in the pre-enabled state for the given
// announcement fields.
func NewEntry(outPoint wire.OutPoint, addr mnwire.NetAddress, collateralKey,
	operatorKey, sig []byte, sigTime int64, protocolVersion int32,
	variant Variant, rewardAddress []byte, rewardPercent int32) *Entry {

	return &Entry{
		OutPoint:        outPoint,
		Addr:            *addr.Copy(),
		CollateralKey:   collateralKey,
		OperatorKey:     operatorKey,
		Sig:             sig,
		SigTime:         sigTime,
		ProtocolVersion: protocolVersion,
		PortOpen:        true,
		RewardAddress:   rewardAddress,
		RewardPercent:   rewardPercent,
		Variant:         variant,
		State:           StatePreEnabled,
	}
}

// IsEnabled returns whether the entry is in the enabled state.
func (e *Entry) IsEnabled() bool {
	return e.State == StateEnabled
}

// UpdatedWithin returns whether the entry was last seen within the given
// number of seconds of now.
func (e *Entry) UpdatedWithin(now, window int64) bool {
	return now-e.LastSeen <= window
}

// UpdateLastSeen records the entry as seen at the given time.
func (e *Entry) UpdateLastSeen(at int64) {
	e.LastSeen = at
}

// Disable marks the entry for removal by the next sweep.
func (e *Entry) Disable() {
	e.State = StateRemove
}

// Check recomputes the entry state.  An explicitly disabled entry stays
// disabled.  An entry unseen past the expiry window becomes expired,
// otherwise the state follows the collateral: unspent means enabled, spent
// means collateral-spent.
func (e *Entry) Check(now int64, chain ChainView) {
	if e.State == StateRemove {
		return
	}

	if now-e.LastSeen > ExpirySeconds {
		e.State = StateExpired
		return
	}

	if !chain.CollateralUnspent(e.OutPoint) {
		e.State = StateCollateralSpent
		return
	}

	e.State = StateEnabled
}

// InputAge returns the confirmation count of the collateral transaction.
func (e *Entry) InputAge(chain ChainView) int32 {
	return chain.InputAge(e.OutPoint)
}

// SecondsSincePayment returns how long ago the masternode last received a
// payment according to the ledger.
func (e *Entry) SecondsSincePayment(ledger PaymentLedger) int64 {
	return ledger.SecondsSincePayment(e.OutPoint)
}

// ScoreHash returns the deterministic 256-bit ranking score of the entry
// for the given block hash: the double-sha256 of the collateral outpoint
// concatenated with the hash.
func (e *Entry) ScoreHash(blockHash *chainhash.Hash) chainhash.Hash {
	buf := make([]byte, 0, chainhash.HashSize*2+4)
	buf = append(buf, e.OutPoint.Hash[:]...)
	var index [4]byte
	binary.LittleEndian.PutUint32(index[:], e.OutPoint.Index)
	buf = append(buf, index[:]...)
	buf = append(buf, blockHash[:]...)
	return chainhash.DoubleHashH(buf)
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Addr = *e.Addr.Copy()
	c.CollateralKey = append([]byte(nil), e.CollateralKey...)
	c.OperatorKey = append([]byte(nil), e.OperatorKey...)
	c.Sig = append([]byte(nil), e.Sig...)
	c.RewardAddress = append([]byte(nil), e.RewardAddress...)
	return &c
}

// outPointLess orders outpoints by raw byte order, hash first then index.
// It is the ranking tiebreak.
func outPointLess(a, b *wire.OutPoint) bool {
	if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
		return c < 0
	}
	return a.Index < b.Index
}

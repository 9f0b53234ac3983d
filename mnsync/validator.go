// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/phcsuite/phcd/mnmgr"
	"github.com/phcsuite/phcd/mnwire"
)

const (
	// MinValidSigTime is the epoch floor for signature times.  Anything
	// earlier is a historical or replayed packet.
	MinValidSigTime = 1511159400

	// MinConfirmations is the confirmation depth the collateral
	// transaction must have before an announcement is accepted.
	MinConfirmations = 15

	// MinAnnounceInterval is the minimum time between accepted in-place
	// updates of the same entry.
	MinAnnounceInterval = 60 * 60

	// MinPingInterval is how long an entry must have gone unseen before a
	// ping refreshes its last seen time and is relayed.  Valid pings inside
	// the interval are still recorded.
	MinPingInterval = 5 * 60

	// voteInterval is the minimum time between accepted votes of the
	// same entry.
	voteInterval = 60 * 60

	// maxTimeDrift is how far into the future (and for pings, the past)
	// a signature time may lie relative to network adjusted time.
	maxTimeDrift = 60 * 60

	// pubKeyHashScriptLen is the length of a canonical pay-to-pubkey-hash
	// script, which is the shape both announcement keys must encode to.
	pubKeyHashScriptLen = 25
)

// Validator performs the stateless checks on inbound gossip messages.  It
// holds no mutable state and returns a verdict per message: nil for accept,
// a RuleError with a zero score for a silent drop, or a RuleError with a
// positive score for provable misbehavior.
type Validator struct {
	chain            ChainBackend
	signer           Signer
	addrParams       *chaincfg.Params
	collateralScript []byte
	minProtocol      int32
}

// NewValidator returns a validator using the given collaborators.
func NewValidator(chain ChainBackend, signer Signer,
	addrParams *chaincfg.Params, collateralScript []byte,
	minProtocol int32) *Validator {

	return &Validator{
		chain:            chain,
		signer:           signer,
		addrParams:       addrParams,
		collateralScript: collateralScript,
		minProtocol:      minProtocol,
	}
}

// CheckAnnounce runs the admission checks on a legacy announcement that do
// not require a registry or UTXO lookup: time bounds, address shape,
// protocol floor, key shapes and the signature.
func (v *Validator) CheckAnnounce(msg *mnwire.MsgAnnounce) error {
	return v.checkAnnounce(msg, AnnounceSigString(msg))
}

// CheckAnnounceExt runs the same admission checks on an extended
// announcement, plus the reward range check.
func (v *Validator) CheckAnnounceExt(msg *mnwire.MsgAnnounceExt) error {
	if msg.RewardPercent < 0 || msg.RewardPercent > 100 {
		return ruleErrorf(0, "reward percentage %d out of range",
			msg.RewardPercent)
	}
	sigString, err := AnnounceExtSigString(msg)
	if err != nil {
		return ruleErrorf(0, "undecodable reward script: %v", err)
	}
	return v.checkAnnounce(&msg.MsgAnnounce, sigString)
}

// checkAnnounce is the variant independent part of the announcement checks.
func (v *Validator) checkAnnounce(msg *mnwire.MsgAnnounce,
	sigString string) error {

	// Historical or replayed packet.
	if msg.SigTime < MinValidSigTime {
		return ruleErrorf(0, "signature time %d predates the epoch "+
			"floor", msg.SigTime)
	}

	if msg.SigTime > msg.LastUpdated {
		return ruleErrorf(0, "signature time %d is newer than last "+
			"updated %d", msg.SigTime, msg.LastUpdated)
	}

	if msg.Addr.Port == 0 {
		return ruleError(0, "announcement with port 0")
	}

	// Make sure the signature isn't in the future (past is OK).
	if msg.SigTime > v.chain.AdjustedTime()+maxTimeDrift {
		return ruleErrorf(0, "signature time %d too far in the future",
			msg.SigTime)
	}

	if msg.ProtocolVersion < v.minProtocol {
		return ruleErrorf(0, "outdated protocol version %d",
			msg.ProtocolVersion)
	}

	if err := v.checkKeyShape(msg.CollateralKey); err != nil {
		return err
	}
	if err := v.checkKeyShape(msg.OperatorKey); err != nil {
		return err
	}

	if len(msg.Vin.SignatureScript) != 0 {
		return ruleError(0, "announcement vin carries a script sig")
	}

	if err := v.signer.VerifyMessage(msg.CollateralKey, msg.Sig,
		sigString); err != nil {

		return ruleErrorf(100, "bad announcement signature: %v", err)
	}

	return nil
}

// checkKeyShape ensures a serialized public key encodes to a canonical
// pay-to-pubkey-hash script.  A key that does not is assumed malicious.
func (v *Validator) checkKeyShape(key []byte) error {
	if _, err := btcec.ParsePubKey(key); err != nil {
		return ruleErrorf(100, "undecodable public key: %v", err)
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key),
		v.addrParams)
	if err != nil {
		return ruleErrorf(100, "public key hash unencodable: %v", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil || len(script) != pubKeyHashScriptLen {
		return ruleError(100, "public key is the wrong size")
	}
	return nil
}

// CheckCollateral verifies the collateral proof behind an accepted
// announcement: the outpoint must still hold the required amount, be
// buried deep enough, and predate the asserted signature time.  It is run
// once per masternode on the create path since the UTXO lookups are
// expensive.
func (v *Validator) CheckCollateral(op wire.OutPoint, sigTime int64) error {
	// Build a synthetic transaction spending the collateral to the well
	// known script for one coin less than the required amount.  The
	// memory pool accepts it exactly when the outpoint is unspent and
	// holds the full collateral.
	collateral := v.chain.RequiredCollateral(v.chain.BestHeight())
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	tx.AddTxOut(wire.NewTxOut((collateral-1)*btcutil.SatoshiPerBitcoin,
		v.collateralScript))

	acceptable, dos := v.chain.AcceptDryRun(tx)
	if !acceptable {
		if dos > 0 {
			return ruleErrorf(dos, "collateral spend rejected by "+
				"the memory pool")
		}
		return ruleError(0, "collateral is spent or uncommitted")
	}

	if age := v.chain.InputAge(op); age < MinConfirmations {
		return ruleErrorf(20, "collateral has %d of %d required "+
			"confirmations", age, MinConfirmations)
	}

	// The signature time must not predate the block in which the
	// collateral reached the required depth.
	if height, ok := v.chain.TxBlockHeight(&op.Hash); ok {
		confTime, ok := v.chain.BlockTime(height + MinConfirmations - 1)
		if ok && confTime > sigTime {
			return ruleErrorf(0, "signature time %d predates "+
				"collateral confirmation at %d", sigTime,
				confTime)
		}
	}

	return nil
}

// CheckPing validates a liveness ping against the registry entry it
// refers to: the signature time must be within an hour of network time,
// strictly newer than the last accepted ping, and signed by the operator
// key.  Failures are silent; a stale ping is routine gossip noise.
func (v *Validator) CheckPing(msg *mnwire.MsgPing, entry *mnmgr.Entry) error {
	now := v.chain.AdjustedTime()
	if msg.SigTime > now+maxTimeDrift {
		return ruleErrorf(0, "ping signature time %d too far in the "+
			"future", msg.SigTime)
	}
	if msg.SigTime <= now-maxTimeDrift {
		return ruleErrorf(0, "ping signature time %d too far in the "+
			"past", msg.SigTime)
	}

	if msg.SigTime <= entry.LastPingTime {
		return ruleErrorf(0, "ping signature time %d does not advance "+
			"%d", msg.SigTime, entry.LastPingTime)
	}

	sigString := PingSigString(&entry.Addr, msg.SigTime, msg.Stop)
	if err := v.signer.VerifyMessage(entry.OperatorKey, msg.Sig,
		sigString); err != nil {

		return ruleErrorf(0, "bad ping signature: %v", err)
	}

	return nil
}

// CheckVote validates a governance vote against the registry entry it
// refers to.  At most one vote per entry per hour is accepted.
func (v *Validator) CheckVote(msg *mnwire.MsgVote, entry *mnmgr.Entry) error {
	if v.chain.AdjustedTime()-entry.LastVoteTime < voteInterval {
		return ruleError(0, "vote inside the per-entry interval")
	}

	op := msg.OutPoint()
	sigString := VoteSigString(&op, msg.VoteValue)
	if err := v.signer.VerifyMessage(entry.OperatorKey, msg.Sig,
		sigString); err != nil {

		return ruleErrorf(0, "bad vote signature: %v", err)
	}

	return nil
}

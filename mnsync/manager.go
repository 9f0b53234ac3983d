// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"bytes"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/lru"

	"github.com/phcsuite/phcd/mnmgr"
	"github.com/phcsuite/phcd/mnwire"
)

const (
	// maxRecentMessages bounds the duplicate suppression cache of
	// recently processed announcement hashes.
	maxRecentMessages = 1024

	// addrBookPenalty is the penalty window passed to the address book
	// when a masternode address is inserted as a potential peer.
	addrBookPenalty = 2 * time.Hour
)

// Manager dispatches inbound masternode gossip.  A single dispatch mutex
// serializes message processing; it is distinct from the registry mutex
// and the two are never held in the opposite order.
type Manager struct {
	cfg       Config
	validator *Validator

	msgMtx     sync.Mutex
	recentMsgs lru.Cache
}

// New constructs a gossip manager from the configuration.
func New(cfg *Config) *Manager {
	return &Manager{
		cfg: *cfg,
		validator: NewValidator(cfg.Chain, cfg.Signer, cfg.AddrParams,
			cfg.CollateralScript, cfg.MinProtocol),
		recentMsgs: lru.NewCache(maxRecentMessages),
	}
}

// ProcessMessage dispatches a single masternode gossip message received
// from the given peer.  Messages are ignored until the blockchain is
// synced since none of the proofs can be checked against a stale chain.
func (m *Manager) ProcessMessage(p Peer, msg mnwire.Message) {
	if m.cfg.IsSynced != nil && !m.cfg.IsSynced() {
		return
	}

	m.msgMtx.Lock()
	defer m.msgMtx.Unlock()

	switch msg := msg.(type) {
	case *mnwire.MsgAnnounceExt:
		m.handleAnnounce(p, &msg.MsgAnnounce, msg)

	case *mnwire.MsgAnnounce:
		m.handleAnnounce(p, msg, nil)

	case *mnwire.MsgPing:
		m.handlePing(p, msg)

	case *mnwire.MsgVote:
		m.handleVote(p, msg)

	case *mnwire.MsgListRequest:
		m.handleListRequest(p, msg)

	default:
		log.Warnf("Received unhandled masternode message of type %T "+
			"from %s", msg, p.NA())
	}
}

// RequestList asks the peer for the full masternode list, typically after
// a new outbound connection completes its handshake.  The request is rate
// limited per peer so a flapping connection does not trigger repeated full
// dumps.
func (m *Manager) RequestList(p Peer) {
	if !m.cfg.Registry.ShouldAskForList(p.NA().String()) {
		log.Debugf("Already asked %s for the masternode list, skipping",
			p.NA())
		return
	}
	p.PushMessage(mnwire.NewMsgListRequestAll())
}

// punish reports the misbehavior score of a rule error, when it carries
// one, and logs the drop.
func (m *Manager) punish(p Peer, what string, err error) {
	if score := misbehaviorScore(err); score > 0 {
		m.cfg.Peers.Misbehaving(p.ID(), score)
	}
	log.Debugf("Rejected %s from %s: %v", what, p.NA(), err)
}

// messageHash returns the double-sha256 of the serialized message, used as
// the duplicate suppression key.
func (m *Manager) messageHash(msg mnwire.Message) (chainhash.Hash, error) {
	var buf bytes.Buffer
	err := msg.BtcEncode(&buf, uint32(m.cfg.ProtocolVersion))
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(buf.Bytes()), nil
}

// isOwnPendingActivation reports whether an announcement carries the local
// operator key while the local identity still waits for its collateral, in
// which case the announcement must take the admission path rather than the
// update path so activation completes.
func (m *Manager) isOwnPendingActivation(operatorKey []byte) bool {
	a := m.cfg.Active
	return a != nil && a.IsMasternode() && !a.HasCollateral() &&
		bytes.Equal(operatorKey, a.OperatorKey())
}

// portOpen probes the advertised port, treating it as open when no prober
// is configured.
func (m *Manager) portOpen(addr *mnwire.NetAddress) bool {
	if m.cfg.Prober == nil {
		return true
	}
	return m.cfg.Prober.PortOpen(addr)
}

// handleAnnounce processes both announcement variants; extMsg is nil on the
// legacy path.
func (m *Manager) handleAnnounce(p Peer, msg *mnwire.MsgAnnounce,
	extMsg *mnwire.MsgAnnounceExt) {

	var relayMsg mnwire.Message = msg
	if extMsg != nil {
		relayMsg = extMsg
	}

	// Identical re-broadcasts carry no new information and are not worth
	// revalidating.
	if mhash, err := m.messageHash(relayMsg); err == nil {
		if m.recentMsgs.Contains(mhash) {
			return
		}
		m.recentMsgs.Add(mhash)
	}

	var err error
	if extMsg != nil {
		err = m.validator.CheckAnnounceExt(extMsg)
	} else {
		err = m.validator.CheckAnnounce(msg)
	}
	if err != nil {
		m.punish(p, "masternode announcement", err)
		return
	}

	op := msg.OutPoint()
	now := m.cfg.Chain.AdjustedTime()
	isLocal := msg.Addr.IsRFC1918() || msg.Addr.IsLocal()

	// A known entry is updated in place by a superseding broadcast.  The
	// exception is our own announcement arriving while the local
	// identity still waits for its collateral, which must readmit so
	// hot/cold activation fires.
	if known, exists := m.cfg.Registry.Find(op); exists &&
		!m.isOwnPendingActivation(msg.OperatorKey) {

		m.updateExisting(p, msg, extMsg, known, now)
		return
	}

	// New entry: bind the collateral key to the outpoint and verify the
	// collateral proof.  Both are expensive, which is why they run once
	// per masternode here rather than on every re-broadcast.
	if !m.cfg.Signer.OwnsOutPoint(msg.CollateralKey, op) {
		m.cfg.Peers.Misbehaving(p.ID(), 100)
		log.Debugf("Announcement for %v has mismatched collateral "+
			"key and vin", op)
		return
	}

	if err := m.validator.CheckCollateral(op, msg.SigTime); err != nil {
		m.punish(p, "masternode collateral", err)
		return
	}

	variant := mnmgr.VariantLegacy
	var rewardAddress []byte
	var rewardPercent int32
	if extMsg != nil {
		variant = mnmgr.VariantExtended
		rewardAddress = extMsg.RewardAddress
		rewardPercent = extMsg.RewardPercent

		// Script hash reward addresses are not supported; the entry
		// is admitted with the reward redirect dropped.
		if isPayToScriptHash(rewardAddress) {
			rewardAddress = nil
			rewardPercent = 0
		}
	}

	log.Debugf("Got new masternode entry %s", msg.Addr.String())

	e := mnmgr.NewEntry(op, msg.Addr, msg.CollateralKey, msg.OperatorKey,
		msg.Sig, msg.SigTime, msg.ProtocolVersion, variant,
		rewardAddress, rewardPercent)
	e.UpdateLastSeen(msg.LastUpdated)

	if m.portOpen(&msg.Addr) {
		m.cfg.Peers.AddKnownAddress(&msg.Addr, p.NA(), addrBookPenalty)
	} else {
		e.PortOpen = false
	}

	m.cfg.Registry.Add(e)
	m.cfg.Registry.CheckEntry(op)

	// If the announcement matches our masternode key we have been
	// remotely activated.
	if a := m.cfg.Active; a != nil &&
		bytes.Equal(msg.OperatorKey, a.OperatorKey()) &&
		msg.ProtocolVersion == m.cfg.ProtocolVersion {

		a.RemoteActivate(op, &msg.Addr)
	}

	if msg.Count == -1 && !isLocal {
		m.cfg.Peers.BroadcastMessage(relayMsg)
	}
}

// updateExisting applies a superseding announcement to a known entry.
func (m *Manager) updateExisting(p Peer, msg *mnwire.MsgAnnounce,
	extMsg *mnwire.MsgAnnounceExt, known *mnmgr.Entry, now int64) {

	// Count == -1 marks a live broadcast; list-sync replies neither
	// refresh nor relay.  The collateral key was bound to the outpoint
	// on admission, so a changed key never updates in place.
	if msg.Count != -1 ||
		!bytes.Equal(known.CollateralKey, msg.CollateralKey) ||
		known.UpdatedWithin(now, MinAnnounceInterval) {

		return
	}

	op := msg.OutPoint()
	if known.SigTime >= msg.SigTime {
		// Not superseded; just note that the operator is alive.
		m.cfg.Registry.WithEntry(op, func(e *mnmgr.Entry) {
			e.UpdateLastSeen(now)
		})
		return
	}

	portOpen := m.portOpen(&msg.Addr)

	updated := false
	m.cfg.Registry.WithEntry(op, func(e *mnmgr.Entry) {
		e.UpdateLastSeen(now)

		// Take the newest entry only; re-verify under the lock so
		// signature times never regress.
		if e.SigTime >= msg.SigTime {
			return
		}

		e.OperatorKey = msg.OperatorKey
		e.SigTime = msg.SigTime
		e.Sig = msg.Sig
		e.ProtocolVersion = msg.ProtocolVersion
		e.Addr = *msg.Addr.Copy()
		e.PortOpen = portOpen
		if extMsg != nil {
			e.Variant = mnmgr.VariantExtended
			e.RewardAddress = extMsg.RewardAddress
			e.RewardPercent = extMsg.RewardPercent
		} else {
			e.Variant = mnmgr.VariantLegacy
		}
		updated = true
	})
	if !updated {
		return
	}

	log.Debugf("Got updated entry for %s", msg.Addr.String())
	if portOpen {
		m.cfg.Peers.AddKnownAddress(&msg.Addr, p.NA(), addrBookPenalty)
	}

	if state, ok := m.cfg.Registry.CheckEntry(op); ok &&
		state == mnmgr.StateEnabled {

		var relayMsg mnwire.Message = msg
		if extMsg != nil {
			relayMsg = extMsg
		}
		m.cfg.Peers.BroadcastMessage(relayMsg)
	}
}

// handlePing processes a liveness beacon.
func (m *Manager) handlePing(p Peer, msg *mnwire.MsgPing) {
	op := msg.OutPoint()
	log.Tracef("Received ping for %v, sigTime %d, stop %v", op,
		msg.SigTime, msg.Stop)

	known, exists := m.cfg.Registry.Find(op)
	if !exists || known.ProtocolVersion < m.cfg.MinProtocol {
		// We do not know this masternode (or only a useless version
		// of it); ask the sender for the announcement, rate limited.
		if m.cfg.Registry.ShouldAskForEntry(op) {
			log.Debugf("Asking %s for missing entry %v", p.NA(), op)
			p.PushMessage(mnwire.NewMsgListRequest(op))
		}
		return
	}

	if err := m.validator.CheckPing(msg, known); err != nil {
		log.Debugf("Dropped ping for %v from %s: %v", op, p.NA(), err)
		return
	}

	now := m.cfg.Chain.AdjustedTime()
	relay := !known.UpdatedWithin(now, MinPingInterval)
	enabled := true

	m.cfg.Registry.WithEntry(op, func(e *mnmgr.Entry) {
		e.LastPingTime = msg.SigTime
		if msg.Stop {
			e.Disable()
			return
		}
		if relay {
			e.UpdateLastSeen(now)
		}
	})

	if !msg.Stop && relay {
		state, ok := m.cfg.Registry.CheckEntry(op)
		enabled = ok && state == mnmgr.StateEnabled
	}

	if relay && (msg.Stop || enabled) {
		m.cfg.Peers.BroadcastMessage(msg)
	}
}

// handleVote processes a governance vote.
func (m *Manager) handleVote(p Peer, msg *mnwire.MsgVote) {
	op := msg.OutPoint()
	known, exists := m.cfg.Registry.Find(op)
	if !exists {
		return
	}

	if err := m.validator.CheckVote(msg, known); err != nil {
		log.Debugf("Dropped vote for %v from %s: %v", op, p.NA(), err)
		return
	}

	now := m.cfg.Chain.AdjustedTime()
	m.cfg.Registry.WithEntry(op, func(e *mnmgr.Entry) {
		e.VoteValue = msg.VoteValue
		e.LastVoteTime = now
	})

	m.cfg.Peers.BroadcastMessage(msg)
}

// handleListRequest answers a dseg with announcements: every enabled entry
// outside the RFC1918 private ranges for a full request, or the one
// matching entry for a specific request.  Full dumps are rate limited per peer on the
// production network, with repeat offenders charged misbehavior.
func (m *Manager) handleListRequest(p Peer, msg *mnwire.MsgListRequest) {
	if msg.WantsFullList() && !p.NA().IsRFC1918() && m.cfg.MainNet {
		if !m.cfg.Registry.CheckListRequest(p.NA().String()) {
			m.cfg.Peers.Misbehaving(p.ID(), 34)
			log.Debugf("Peer %s already asked for the masternode "+
				"list", p.NA())
			return
		}
	}

	entries := m.cfg.Registry.Entries()
	count := int32(len(entries))
	op := msg.OutPoint()

	sent := 0
	for _, e := range entries {
		// Entries on private ranges are of no use to anyone else.
		if e.Addr.IsRFC1918() {
			continue
		}
		if !e.IsEnabled() {
			continue
		}

		if msg.WantsFullList() {
			p.PushMessage(announceFromEntry(e, count, int32(sent)))
		} else if e.OutPoint == op {
			p.PushMessage(announceFromEntry(e, count, int32(sent)))
			log.Debugf("Sent single masternode entry to %s", p.NA())
			return
		}
		sent++
	}

	log.Debugf("Sent %d masternode entries to %s", sent, p.NA())
}

// announceFromEntry rebuilds the announcement for a registry entry in the
// variant it was admitted with.
func announceFromEntry(e *mnmgr.Entry, count, current int32) mnwire.Message {
	base := mnwire.NewMsgAnnounce(e.OutPoint, e.Addr, e.Sig, e.SigTime,
		e.CollateralKey, e.OperatorKey, e.ProtocolVersion)
	base.Count = count
	base.Current = current
	base.LastUpdated = e.LastSeen

	if e.Variant == mnmgr.VariantLegacy {
		return base
	}
	return &mnwire.MsgAnnounceExt{
		MsgAnnounce:   *base,
		RewardAddress: e.RewardAddress,
		RewardPercent: e.RewardPercent,
	}
}

// isPayToScriptHash returns whether the script is a pay-to-script-hash
// script, which reward redirects do not support.
func isPayToScriptHash(script []byte) bool {
	return txscript.GetScriptClass(script) == txscript.ScriptHashTy
}

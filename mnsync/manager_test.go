// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/phcsuite/phcd/mnmgr"
	"github.com/phcsuite/phcd/mnwire"
)

// TestAnnounceAdmission covers the fresh-registry admission flow: a valid
// extended announcement creates one enabled entry and is relayed once.
func TestAnnounceAdmission(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, msg)

	require.Equal(t, 1, h.reg.Size())
	e, ok := h.reg.Find(msg.OutPoint())
	require.True(t, ok)
	require.Equal(t, mnmgr.StateEnabled, e.State)
	require.Equal(t, mnmgr.VariantExtended, e.Variant)
	require.Equal(t, int32(10), e.RewardPercent)
	require.Equal(t, testSigTime, e.SigTime)

	require.Len(t, h.peers.broadcasts, 1)
	require.Equal(t, 1, h.peers.addrAdds)
	require.Equal(t, 1, h.reg.CountEnabled(testProtocol))
	require.Empty(t, h.peers.reports)
}

// TestAnnounceSupersede covers the update-in-place flow: a strictly newer
// announcement for a known outpoint replaces the address and relays again.
func TestAnnounceSupersede(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	first := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, first)
	require.Len(t, h.peers.broadcasts, 1)

	second := h.testAnnounceExt(t, 1, testSigTime+300, "1.2.3.4", 9999)
	h.gossip.ProcessMessage(p, second)

	require.Equal(t, 1, h.reg.Size())
	e, ok := h.reg.Find(first.OutPoint())
	require.True(t, ok)
	require.Equal(t, "1.2.3.4:9999", e.Addr.String())
	require.Equal(t, testSigTime+300, e.SigTime)
	require.Len(t, h.peers.broadcasts, 2)
}

// TestAnnounceStaleIgnored ensures an announcement that does not advance
// the stored signature time changes nothing and is not relayed.
func TestAnnounceStaleIgnored(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060))
	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 1, testSigTime+300, "1.2.3.4", 9999))
	require.Len(t, h.peers.broadcasts, 2)

	stale := h.testAnnounceExt(t, 1, testSigTime+100, "4.4.4.4", 1111)
	h.gossip.ProcessMessage(p, stale)

	e, ok := h.reg.Find(stale.OutPoint())
	require.True(t, ok)
	require.Equal(t, "1.2.3.4:9999", e.Addr.String())
	require.Equal(t, testSigTime+300, e.SigTime)
	require.Len(t, h.peers.broadcasts, 2, "stale announcement relayed")
}

// TestAnnounceReplayIdempotent replays the byte-identical announcement and
// expects the same final registry and a single relay event.
func TestAnnounceReplayIdempotent(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, msg)

	replay := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, replay)

	require.Equal(t, 1, h.reg.Size())
	require.Len(t, h.peers.broadcasts, 1, "replay was relayed again")
}

// TestAnnounceLocalAddressNotRelayed ensures entries advertising private
// addresses are admitted but not relayed.
func TestAnnounceLocalAddressNotRelayed(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "192.168.1.5", 20060)
	h.gossip.ProcessMessage(p, msg)

	require.Equal(t, 1, h.reg.Size())
	require.Empty(t, h.peers.broadcasts)
}

// TestAnnounceSyncReplyNotRelayed ensures a list-sync reply (count != -1)
// for a known entry neither updates nor relays.
func TestAnnounceSyncReplyNotRelayed(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060))
	require.Len(t, h.peers.broadcasts, 1)

	sync := h.testAnnounceExt(t, 1, testSigTime+300, "1.2.3.4", 9999)
	sync.Count = 5
	sync.Current = 2
	h.gossip.ProcessMessage(p, sync)

	e, _ := h.reg.Find(sync.OutPoint())
	require.Equal(t, "5.6.7.8:20060", e.Addr.String())
	require.Len(t, h.peers.broadcasts, 1)
}

// TestAnnounceMisbehavior covers the punishable announcement failures.
func TestAnnounceMisbehavior(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(7, "9.9.9.9")

	// Bad signature: 100.
	h.signer.verifyErr = errBadSig
	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060))
	require.Equal(t, []misbehavior{{id: 7, score: 100}}, h.peers.reports)
	require.Equal(t, 0, h.reg.Size())
	h.signer.verifyErr = nil

	// Collateral key not bound to the outpoint: 100.
	h.signer.owns = false
	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 2, testSigTime, "5.6.7.9", 20060))
	require.Equal(t, misbehavior{id: 7, score: 100},
		h.peers.reports[len(h.peers.reports)-1])
	require.Equal(t, 0, h.reg.Size())
	h.signer.owns = true

	// Too few confirmations: 20.
	young := h.testAnnounceExt(t, 3, testSigTime, "5.6.7.10", 20060)
	h.chain.ages[young.OutPoint()] = 5
	h.gossip.ProcessMessage(p, young)
	require.Equal(t, misbehavior{id: 7, score: 20},
		h.peers.reports[len(h.peers.reports)-1])
	require.Equal(t, 0, h.reg.Size())

	// Mempool rejection with a DoS score passes it through.
	h.chain.accept = false
	h.chain.dos = 33
	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 4, testSigTime, "5.6.7.11", 20060))
	require.Equal(t, misbehavior{id: 7, score: 33},
		h.peers.reports[len(h.peers.reports)-1])
	require.Equal(t, 0, h.reg.Size())
}

// TestAnnounceRewardScriptHashScrubbedOnCreate ensures the create path
// drops pay-to-script-hash reward addresses while the update path keeps
// them, matching the original protocol's asymmetry.
func TestAnnounceRewardScriptHashScrubbedOnCreate(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	p2sh := []byte{0xa9, 0x14,
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10,
		11, 12, 13, 14, 15, 16, 17, 18, 19, 20,
		0x87}

	create := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	create.RewardAddress = p2sh
	create.RewardPercent = 40
	h.gossip.ProcessMessage(p, create)

	e, ok := h.reg.Find(create.OutPoint())
	require.True(t, ok)
	require.Empty(t, e.RewardAddress, "create path kept a p2sh reward")
	require.Equal(t, int32(0), e.RewardPercent)

	update := h.testAnnounceExt(t, 1, testSigTime+300, "5.6.7.8", 20060)
	update.RewardAddress = p2sh
	update.RewardPercent = 40
	h.gossip.ProcessMessage(p, update)

	e, _ = h.reg.Find(create.OutPoint())
	require.Equal(t, p2sh, e.RewardAddress,
		"update path scrubbed the p2sh reward")
	require.Equal(t, int32(40), e.RewardPercent)
}

// TestAnnounceRemoteActivation ensures an admitted announcement carrying
// the local operator key triggers hot/cold activation.
func TestAnnounceRemoteActivation(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	active := &fakeActive{
		isMasternode: true,
		operatorKey:  msg.OperatorKey,
	}
	h.gossip.cfg.Active = active

	h.gossip.ProcessMessage(p, msg)
	require.Equal(t, 1, active.activations)
}

// TestStopPingDisables covers the stop-flag flow: the entry transitions to
// the removal state and the next sweep deletes it.
func TestStopPingDisables(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, msg)
	require.Equal(t, 1, h.reg.CountEnabled(testProtocol))

	stop := mnwire.NewMsgPing(msg.OutPoint(), []byte{0x30}, testNow, true)
	h.gossip.ProcessMessage(p, stop)

	e, ok := h.reg.Find(msg.OutPoint())
	require.True(t, ok)
	require.Equal(t, mnmgr.StateRemove, e.State)
	require.Equal(t, testNow, e.LastPingTime)

	h.reg.Sweep()
	require.Equal(t, 0, h.reg.Size())
	require.Equal(t, 0, h.reg.CountEnabled(testProtocol))
}

// TestPingRefreshesAndRelays ensures a ping outside the relay interval
// refreshes last seen and is rebroadcast.
func TestPingRefreshesAndRelays(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, msg)
	require.Len(t, h.peers.broadcasts, 1)

	// The entry was last seen at its announcement time, well outside
	// the ping interval.
	ping := mnwire.NewMsgPing(msg.OutPoint(), []byte{0x30}, testNow, false)
	h.gossip.ProcessMessage(p, ping)

	e, _ := h.reg.Find(msg.OutPoint())
	require.Equal(t, testNow, e.LastPingTime)
	require.Equal(t, testNow, e.LastSeen)
	require.Len(t, h.peers.broadcasts, 2)
	require.Equal(t, ping, h.peers.broadcasts[1])

	// A second ping one second later is accepted but not relayed: the
	// entry is now fresh.
	again := mnwire.NewMsgPing(msg.OutPoint(), []byte{0x30}, testNow+1,
		false)
	h.gossip.ProcessMessage(p, again)

	e, _ = h.reg.Find(msg.OutPoint())
	require.Equal(t, testNow+1, e.LastPingTime)
	require.Len(t, h.peers.broadcasts, 2)
}

// TestPingUnknownEntryRequestsIt ensures a ping for an unknown outpoint
// asks the sender for the announcement, rate limited per outpoint.
func TestPingUnknownEntryRequestsIt(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	var hash chainhash.Hash
	hash[0] = 0x77
	op := wire.OutPoint{Hash: hash, Index: 1}

	ping := mnwire.NewMsgPing(op, []byte{0x30}, testNow, false)
	h.gossip.ProcessMessage(p, ping)

	require.Len(t, p.pushed, 1)
	req, ok := p.pushed[0].(*mnwire.MsgListRequest)
	require.True(t, ok, "pushed %T, want list request", p.pushed[0])
	require.Equal(t, op, req.OutPoint())
	require.False(t, req.WantsFullList())

	// Asking again inside the interval is suppressed.
	h.gossip.ProcessMessage(p, ping)
	require.Len(t, p.pushed, 1)
}

// TestVote covers vote admission, the hourly interval and the relay.
func TestVote(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	msg := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	h.gossip.ProcessMessage(p, msg)
	require.Len(t, h.peers.broadcasts, 1)

	vote := mnwire.NewMsgVote(msg.OutPoint(), []byte{0x30}, 1)
	h.gossip.ProcessMessage(p, vote)

	e, _ := h.reg.Find(msg.OutPoint())
	require.Equal(t, int32(1), e.VoteValue)
	require.Equal(t, testNow, e.LastVoteTime)
	require.Len(t, h.peers.broadcasts, 2)

	// A second vote inside the hour is dropped.
	second := mnwire.NewMsgVote(msg.OutPoint(), []byte{0x30}, -1)
	h.gossip.ProcessMessage(p, second)

	e, _ = h.reg.Find(msg.OutPoint())
	require.Equal(t, int32(1), e.VoteValue)
	require.Len(t, h.peers.broadcasts, 2)

	// Votes for unknown entries are ignored.
	var hash chainhash.Hash
	hash[0] = 0x55
	unknown := mnwire.NewMsgVote(wire.OutPoint{Hash: hash}, []byte{0x30}, 1)
	h.gossip.ProcessMessage(p, unknown)
	require.Len(t, h.peers.broadcasts, 2)
}

// TestListRequestRateLimit covers the full-dump reply and its abuse
// scoring: the first request yields one announcement per enabled entry,
// the second inside the interval yields none and costs 34.
func TestListRequestRateLimit(t *testing.T) {
	h := newHarness(t)
	source := newFakePeer(1, "9.9.9.9")

	for seed := byte(1); seed <= 3; seed++ {
		h.gossip.ProcessMessage(source, h.testAnnounceExt(t, seed,
			testSigTime, "5.6.7.8", 20000+uint16(seed)))
	}
	require.Equal(t, 3, h.reg.CountEnabled(testProtocol))

	asker := newFakePeer(2, "8.8.8.8")
	h.gossip.ProcessMessage(asker, mnwire.NewMsgListRequestAll())
	require.Len(t, asker.pushed, 3)
	for _, pushed := range asker.pushed {
		ext, ok := pushed.(*mnwire.MsgAnnounceExt)
		require.True(t, ok, "pushed %T, want extended announcement",
			pushed)
		require.Equal(t, int32(3), ext.Count)
	}
	require.Empty(t, h.peers.reports)

	// Ten seconds later, same peer, same request.
	h.chain.now += 10
	h.gossip.ProcessMessage(asker, mnwire.NewMsgListRequestAll())
	require.Len(t, asker.pushed, 3, "rate limited dump still replied")
	require.Equal(t, []misbehavior{{id: 2, score: 34}}, h.peers.reports)
}

// TestListRequestPrivatePeerNotScored ensures the abuse scoring does not
// apply to peers on private ranges.
func TestListRequestPrivatePeerNotScored(t *testing.T) {
	h := newHarness(t)
	source := newFakePeer(1, "9.9.9.9")
	h.gossip.ProcessMessage(source,
		h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060))

	asker := newFakePeer(2, "192.168.0.9")
	h.gossip.ProcessMessage(asker, mnwire.NewMsgListRequestAll())
	h.gossip.ProcessMessage(asker, mnwire.NewMsgListRequestAll())

	require.Len(t, asker.pushed, 2)
	require.Empty(t, h.peers.reports)
}

// TestListRequestSingleEntry asks for one specific outpoint.
func TestListRequestSingleEntry(t *testing.T) {
	h := newHarness(t)
	source := newFakePeer(1, "9.9.9.9")

	first := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	second := h.testAnnounceExt(t, 2, testSigTime, "5.6.7.9", 20060)
	h.gossip.ProcessMessage(source, first)
	h.gossip.ProcessMessage(source, second)

	asker := newFakePeer(2, "8.8.8.8")
	h.gossip.ProcessMessage(asker,
		mnwire.NewMsgListRequest(second.OutPoint()))

	require.Len(t, asker.pushed, 1)
	ext, ok := asker.pushed[0].(*mnwire.MsgAnnounceExt)
	require.True(t, ok)
	require.Equal(t, second.OutPoint(), ext.OutPoint())
}

// TestListRequestSkipsPrivateEntries ensures entries advertising private
// addresses are left out of dumps.
func TestListRequestSkipsPrivateEntries(t *testing.T) {
	h := newHarness(t)
	source := newFakePeer(1, "9.9.9.9")

	public := h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060)
	private := h.testAnnounceExt(t, 2, testSigTime, "10.0.0.5", 20060)
	h.gossip.ProcessMessage(source, public)
	h.gossip.ProcessMessage(source, private)
	require.Equal(t, 2, h.reg.Size())

	asker := newFakePeer(2, "8.8.8.8")
	h.gossip.ProcessMessage(asker, mnwire.NewMsgListRequestAll())

	require.Len(t, asker.pushed, 1)
	ext := asker.pushed[0].(*mnwire.MsgAnnounceExt)
	require.Equal(t, public.OutPoint(), ext.OutPoint())
}

// TestRequestList ensures outbound full list requests are rate limited per
// peer.
func TestRequestList(t *testing.T) {
	h := newHarness(t)
	p := newFakePeer(1, "9.9.9.9")

	h.gossip.RequestList(p)
	require.Len(t, p.pushed, 1)
	req, ok := p.pushed[0].(*mnwire.MsgListRequest)
	require.True(t, ok)
	require.True(t, req.WantsFullList())

	h.gossip.RequestList(p)
	require.Len(t, p.pushed, 1, "second request inside the ask interval")

	other := newFakePeer(2, "8.8.8.8")
	h.gossip.RequestList(other)
	require.Len(t, other.pushed, 1)
}

// TestProcessMessageGatedOnSync ensures gossip is ignored until the chain
// is synced.
func TestProcessMessageGatedOnSync(t *testing.T) {
	h := newHarness(t)
	synced := false
	h.gossip.cfg.IsSynced = func() bool { return synced }
	p := newFakePeer(1, "9.9.9.9")

	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060))
	require.Equal(t, 0, h.reg.Size())

	synced = true
	h.gossip.ProcessMessage(p,
		h.testAnnounceExt(t, 1, testSigTime, "5.6.7.8", 20060))
	require.Equal(t, 1, h.reg.Size())
}

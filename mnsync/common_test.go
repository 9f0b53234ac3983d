// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/phcsuite/phcd/mnmgr"
	"github.com/phcsuite/phcd/mnwire"
)

// testNow is the fixed network adjusted time the tests run at.  It is
// chosen so that an entry last updated at testSigTime is older than the
// announce interval but younger than the expiry window.
const (
	testNow      = int64(1700003700)
	testSigTime  = int64(1700000000)
	testProtocol = int32(70047)
)

// fakeChain implements both the gossip ChainBackend and the registry
// ChainView against fixed test data.
type fakeChain struct {
	height    int64
	hashes    map[int64]*chainhash.Hash
	times     map[int64]int64
	txHeights map[chainhash.Hash]int64
	ages      map[wire.OutPoint]int32
	spent     map[wire.OutPoint]bool
	accept    bool
	dos       int
	now       int64
}

func newTestChain() *fakeChain {
	return &fakeChain{
		height:    2000,
		hashes:    make(map[int64]*chainhash.Hash),
		times:     make(map[int64]int64),
		txHeights: make(map[chainhash.Hash]int64),
		ages:      make(map[wire.OutPoint]int32),
		spent:     make(map[wire.OutPoint]bool),
		accept:    true,
		now:       testNow,
	}
}

func (c *fakeChain) BestHeight() int64 { return c.height }

func (c *fakeChain) BlockHash(height int64) (*chainhash.Hash, bool) {
	hash, ok := c.hashes[height]
	return hash, ok
}

func (c *fakeChain) BlockTime(height int64) (int64, bool) {
	t, ok := c.times[height]
	return t, ok
}

func (c *fakeChain) TxBlockHeight(txid *chainhash.Hash) (int64, bool) {
	h, ok := c.txHeights[*txid]
	return h, ok
}

func (c *fakeChain) InputAge(op wire.OutPoint) int32 {
	if age, ok := c.ages[op]; ok {
		return age
	}
	return 20
}

func (c *fakeChain) RequiredCollateral(height int64) int64 { return 10000 }

func (c *fakeChain) AcceptDryRun(tx *wire.MsgTx) (bool, int) {
	return c.accept, c.dos
}

func (c *fakeChain) AdjustedTime() int64 { return c.now }

func (c *fakeChain) CollateralUnspent(op wire.OutPoint) bool {
	return !c.spent[op]
}

// fakeSigner implements Signer with configurable outcomes, recording the
// preimages it was asked to verify.
type fakeSigner struct {
	verifyErr error
	owns      bool
	verified  []string
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{owns: true}
}

func (s *fakeSigner) VerifyMessage(pubKey, sig []byte, msg string) error {
	s.verified = append(s.verified, msg)
	return s.verifyErr
}

func (s *fakeSigner) OwnsOutPoint(pubKey []byte, op wire.OutPoint) bool {
	return s.owns
}

// fakePayments implements the registry's payment ledger.
type fakePayments struct{}

func (fakePayments) SecondsSincePayment(op wire.OutPoint) int64 { return 0 }

// fakePeer implements Peer, recording pushed messages.
type fakePeer struct {
	id     int32
	na     *mnwire.NetAddress
	pushed []mnwire.Message
}

func newFakePeer(id int32, host string) *fakePeer {
	return &fakePeer{
		id: id,
		na: &mnwire.NetAddress{IP: net.ParseIP(host), Port: 20060},
	}
}

func (p *fakePeer) ID() int32               { return p.id }
func (p *fakePeer) NA() *mnwire.NetAddress  { return p.na }
func (p *fakePeer) PushMessage(msg mnwire.Message) {
	p.pushed = append(p.pushed, msg)
}

// misbehavior is one recorded misbehavior report.
type misbehavior struct {
	id    int32
	score int
}

// fakePeers implements PeerNotifier, recording broadcasts, misbehavior and
// address book insertions.
type fakePeers struct {
	broadcasts []mnwire.Message
	reports    []misbehavior
	addrAdds   int
}

func (f *fakePeers) BroadcastMessage(msg mnwire.Message) {
	f.broadcasts = append(f.broadcasts, msg)
}

func (f *fakePeers) AddKnownAddress(addr, src *mnwire.NetAddress,
	penalty time.Duration) {

	f.addrAdds++
}

func (f *fakePeers) Misbehaving(id int32, score int) {
	f.reports = append(f.reports, misbehavior{id: id, score: score})
}

// fakeActive implements ActiveIdentity.
type fakeActive struct {
	isMasternode  bool
	hasCollateral bool
	operatorKey   []byte
	activations   int
}

func (a *fakeActive) IsMasternode() bool   { return a.isMasternode }
func (a *fakeActive) HasCollateral() bool  { return a.hasCollateral }
func (a *fakeActive) OperatorKey() []byte  { return a.operatorKey }
func (a *fakeActive) RemoteActivate(op wire.OutPoint,
	addr *mnwire.NetAddress) {

	a.activations++
}

var errBadSig = errors.New("bad signature")

// testKey returns a deterministic valid compressed public key.
func testKey(t *testing.T, seed byte) []byte {
	t.Helper()

	var scalar [32]byte
	scalar[31] = seed
	priv, _ := btcec.PrivKeyFromBytes(scalar[:])
	require.NotNil(t, priv)
	return priv.PubKey().SerializeCompressed()
}

// harness ties a gossip manager to a registry and fakes.
type harness struct {
	gossip *Manager
	reg    *mnmgr.Manager
	chain  *fakeChain
	signer *fakeSigner
	peers  *fakePeers
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	chain := newTestChain()
	signer := newFakeSigner()
	peers := &fakePeers{}

	reg := mnmgr.New(&mnmgr.Config{
		Chain:       chain,
		Payments:    fakePayments{},
		Net:         wire.BitcoinNet(0x2c3f6a77),
		MinProtocol: testProtocol,
		DataDir:     t.TempDir(),
		TimeSource: func() time.Time {
			return time.Unix(chain.now, 0)
		},
	})

	gossip := New(&Config{
		Registry:         reg,
		Chain:            chain,
		Signer:           signer,
		Peers:            peers,
		AddrParams:       &chaincfg.MainNetParams,
		CollateralScript: []byte{0x76, 0xa9, 0x14, 0x00, 0x88, 0xac},
		ProtocolVersion:  testProtocol,
		MinProtocol:      testProtocol,
		MainNet:          true,
	})

	return &harness{
		gossip: gossip,
		reg:    reg,
		chain:  chain,
		signer: signer,
		peers:  peers,
	}
}

// testAnnounceExt builds a valid extended announcement for a deterministic
// outpoint.
func (h *harness) testAnnounceExt(t *testing.T, opSeed byte, sigTime int64,
	host string, port uint16) *mnwire.MsgAnnounceExt {

	t.Helper()

	var hash chainhash.Hash
	for i := range hash {
		hash[i] = opSeed
	}
	op := wire.OutPoint{Hash: hash, Index: 0}
	addr := mnwire.NetAddress{IP: net.ParseIP(host), Port: port}

	msg := mnwire.NewMsgAnnounceExt(op, addr, []byte{0x30, 0x01},
		sigTime, testKey(t, 2*opSeed+1), testKey(t, 2*opSeed+2),
		testProtocol, nil, 10)
	msg.LastUpdated = sigTime
	return msg
}

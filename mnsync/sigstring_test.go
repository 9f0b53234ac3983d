// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"net"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/phcsuite/phcd/mnwire"
)

func TestAnnounceSigStringLayout(t *testing.T) {
	collateralKey := []byte{0x02, 0xaa}
	operatorKey := []byte{0x03, 0xbb}

	msg := mnwire.NewMsgAnnounce(wire.OutPoint{},
		mnwire.NetAddress{IP: net.ParseIP("5.6.7.8"), Port: 20060},
		nil, 1700000000, collateralKey, operatorKey, 70047)

	want := "5.6.7.8:20060" + "1700000000" +
		string(collateralKey) + string(operatorKey) + "70047"
	require.Equal(t, want, AnnounceSigString(msg))
}

func TestAnnounceExtSigStringLayout(t *testing.T) {
	base := mnwire.NewMsgAnnounce(wire.OutPoint{},
		mnwire.NetAddress{IP: net.ParseIP("5.6.7.8"), Port: 20060},
		nil, 1700000000, []byte{0x02}, []byte{0x03}, 70047)

	// An empty reward script disassembles to the empty string, so the
	// extended preimage is the legacy one plus the percentage.
	ext := &mnwire.MsgAnnounceExt{MsgAnnounce: *base, RewardPercent: 25}
	got, err := AnnounceExtSigString(ext)
	require.NoError(t, err)
	require.Equal(t, AnnounceSigString(base)+"25", got)
}

func TestPingSigStringLayout(t *testing.T) {
	addr := &mnwire.NetAddress{IP: net.ParseIP("5.6.7.8"), Port: 20060}

	require.Equal(t, "5.6.7.8:2006017000003001",
		PingSigString(addr, 1700000300, true))
	require.Equal(t, "5.6.7.8:2006017000003000",
		PingSigString(addr, 1700000300, false))
}

func TestVoteSigStringLayout(t *testing.T) {
	var hash chainhash.Hash
	hash[31] = 0x01
	op := wire.OutPoint{Hash: hash, Index: 3}

	require.Equal(t, op.String()+"-1", VoteSigString(&op, -1))
	require.Equal(t, op.String()+"7", VoteSigString(&op, 7))
}

func TestVerifyMessageSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKey := priv.PubKey().SerializeCompressed()

	msg := "5.6.7.8:20060" + "1700000000" + "70047"
	sig := ecdsa.Sign(priv, MessageDigest(msg)).Serialize()

	require.NoError(t, VerifyMessageSignature(pubKey, sig, msg))

	// A different message, key or mangled signature must all fail.
	require.Error(t, VerifyMessageSignature(pubKey, sig, msg+"x"))

	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	require.Error(t, VerifyMessageSignature(
		other.PubKey().SerializeCompressed(), sig, msg))

	require.Error(t, VerifyMessageSignature(pubKey, sig[:8], msg))
	require.Error(t, VerifyMessageSignature([]byte{0x01}, sig, msg))
}

func TestMessageDigestDomainSeparation(t *testing.T) {
	// The digest commits to the signature header, so it never collides
	// with a plain double-sha256 of the message.
	msg := "test message"
	digest := MessageDigest(msg)
	require.Len(t, digest, 32)
	require.NotEqual(t, chainhash.DoubleHashB([]byte(msg)), digest)
	require.Equal(t, digest, MessageDigest(msg))
}

// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/phcsuite/phcd/mnwire"
)

// messageSignatureHeader is the magic prepended to signed gossip messages
// before hashing, inherited from the darksend lineage of the protocol.
const messageSignatureHeader = "DarkCoin Signed Message:\n"

// AnnounceSigString returns the canonical preimage a legacy announcement
// signature commits to: the address, signature time, both raw public keys
// and the protocol version, concatenated without separators.
func AnnounceSigString(msg *mnwire.MsgAnnounce) string {
	return msg.Addr.String() +
		strconv.FormatInt(msg.SigTime, 10) +
		string(msg.CollateralKey) +
		string(msg.OperatorKey) +
		strconv.FormatInt(int64(msg.ProtocolVersion), 10)
}

// AnnounceExtSigString returns the canonical preimage of an extended
// announcement signature: the legacy preimage followed by the disassembled
// reward script and the reward percentage.
func AnnounceExtSigString(msg *mnwire.MsgAnnounceExt) (string, error) {
	disasm, err := txscript.DisasmString(msg.RewardAddress)
	if err != nil {
		return "", err
	}
	return AnnounceSigString(&msg.MsgAnnounce) + disasm +
		strconv.FormatInt(int64(msg.RewardPercent), 10), nil
}

// PingSigString returns the canonical preimage of a ping signature.  The
// address is the one stored in the registry entry, not carried by the
// message.
func PingSigString(addr *mnwire.NetAddress, sigTime int64, stop bool) string {
	stopStr := "0"
	if stop {
		stopStr = "1"
	}
	return addr.String() + strconv.FormatInt(sigTime, 10) + stopStr
}

// VoteSigString returns the canonical preimage of a governance vote
// signature.
func VoteSigString(op *wire.OutPoint, voteValue int32) string {
	return op.String() + strconv.FormatInt(int64(voteValue), 10)
}

// MessageDigest returns the double-sha256 digest a signed gossip message
// string is verified against, with the network's signature header mixed in
// so signatures cannot be replayed from other contexts.
func MessageDigest(msg string) []byte {
	var buf bytes.Buffer
	wire.WriteVarString(&buf, 0, messageSignatureHeader)
	wire.WriteVarString(&buf, 0, msg)
	return chainhash.DoubleHashB(buf.Bytes())
}

// VerifyMessageSignature verifies a DER encoded ECDSA signature over the
// digest of msg under the serialized public key.  It is the verification
// half used by Signer implementations.
func VerifyMessageSignature(pubKey, sig []byte, msg string) error {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return err
	}
	derSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return err
	}
	if !derSig.Verify(MessageDigest(msg), pub) {
		return errors.New("signature does not verify")
	}
	return nil
}

// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MsgAnnounce implements the Message interface and represents a legacy
// masternode election entry broadcast (dsee).  It is the self-declaration a
// masternode operator signs and gossips to enter, or refresh its presence
// in, the masternode list.
//
// Count and Current carry list-sync progress when the message is sent as
// part of a dseg reply.  A live broadcast uses Count == -1, which is also
// what gates relaying on the receiving side.
type MsgAnnounce struct {
	Vin             wire.TxIn
	Addr            NetAddress
	Sig             []byte
	SigTime         int64
	CollateralKey   []byte
	OperatorKey     []byte
	Count           int32
	Current         int32
	LastUpdated     int64
	ProtocolVersion int32
}

// OutPoint returns the collateral outpoint the announcement is keyed by.
func (msg *MsgAnnounce) OutPoint() wire.OutPoint {
	return msg.Vin.PreviousOutPoint
}

// BtcDecode decodes r using the protocol encoding into the receiver.  This
// is part of the Message interface implementation.
func (msg *MsgAnnounce) BtcDecode(r io.Reader, pver uint32) error {
	if err := readTxIn(r, pver, &msg.Vin); err != nil {
		return err
	}
	if err := readNetAddress(r, &msg.Addr); err != nil {
		return err
	}
	sig, err := wire.ReadVarBytes(r, pver, MaxSignatureSize, "signature")
	if err != nil {
		return err
	}
	msg.Sig = sig
	if err := readElement(r, &msg.SigTime); err != nil {
		return err
	}
	collateralKey, err := wire.ReadVarBytes(r, pver, MaxPubKeySize,
		"collateral key")
	if err != nil {
		return err
	}
	msg.CollateralKey = collateralKey
	operatorKey, err := wire.ReadVarBytes(r, pver, MaxPubKeySize,
		"operator key")
	if err != nil {
		return err
	}
	msg.OperatorKey = operatorKey
	if err := readElement(r, &msg.Count); err != nil {
		return err
	}
	if err := readElement(r, &msg.Current); err != nil {
		return err
	}
	if err := readElement(r, &msg.LastUpdated); err != nil {
		return err
	}
	return readElement(r, &msg.ProtocolVersion)
}

// BtcEncode encodes the receiver to w using the protocol encoding.  This is
// part of the Message interface implementation.
func (msg *MsgAnnounce) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeTxIn(w, pver, &msg.Vin); err != nil {
		return err
	}
	if err := writeNetAddress(w, &msg.Addr); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, msg.Sig); err != nil {
		return err
	}
	if err := writeElement(w, msg.SigTime); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, msg.CollateralKey); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, msg.OperatorKey); err != nil {
		return err
	}
	if err := writeElement(w, msg.Count); err != nil {
		return err
	}
	if err := writeElement(w, msg.Current); err != nil {
		return err
	}
	if err := writeElement(w, msg.LastUpdated); err != nil {
		return err
	}
	return writeElement(w, msg.ProtocolVersion)
}

// Command returns the protocol command string for the message.  This is
// part of the Message interface implementation.
func (msg *MsgAnnounce) Command() string {
	return CmdAnnounce
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgAnnounce) MaxPayloadLength(pver uint32) uint32 {
	// Vin 36 + script prefix/sequence, address 18, signature and two keys
	// with length prefixes, plus the fixed size trailer.  Rounded up to a
	// safe bound rather than computed exactly.
	return 4 * 1024
}

// NewMsgAnnounce returns a new dsee message that conforms to the Message
// interface.
func NewMsgAnnounce(outPoint wire.OutPoint, addr NetAddress, sig []byte,
	sigTime int64, collateralKey, operatorKey []byte,
	protocolVersion int32) *MsgAnnounce {

	return &MsgAnnounce{
		Vin: wire.TxIn{
			PreviousOutPoint: outPoint,
		},
		Addr:            addr,
		Sig:             sig,
		SigTime:         sigTime,
		CollateralKey:   collateralKey,
		OperatorKey:     operatorKey,
		Count:           -1,
		Current:         -1,
		LastUpdated:     sigTime,
		ProtocolVersion: protocolVersion,
	}
}

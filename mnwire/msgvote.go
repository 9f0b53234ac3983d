// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MsgVote implements the Message interface and represents a governance vote
// (mvote) cast by a masternode operator.
type MsgVote struct {
	Vin       wire.TxIn
	Sig       []byte
	VoteValue int32
}

// OutPoint returns the collateral outpoint of the voting masternode.
func (msg *MsgVote) OutPoint() wire.OutPoint {
	return msg.Vin.PreviousOutPoint
}

// BtcDecode decodes r using the protocol encoding into the receiver.  This
// is part of the Message interface implementation.
func (msg *MsgVote) BtcDecode(r io.Reader, pver uint32) error {
	if err := readTxIn(r, pver, &msg.Vin); err != nil {
		return err
	}
	sig, err := wire.ReadVarBytes(r, pver, MaxSignatureSize, "signature")
	if err != nil {
		return err
	}
	msg.Sig = sig
	return readElement(r, &msg.VoteValue)
}

// BtcEncode encodes the receiver to w using the protocol encoding.  This is
// part of the Message interface implementation.
func (msg *MsgVote) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeTxIn(w, pver, &msg.Vin); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, msg.Sig); err != nil {
		return err
	}
	return writeElement(w, msg.VoteValue)
}

// Command returns the protocol command string for the message.  This is
// part of the Message interface implementation.
func (msg *MsgVote) Command() string {
	return CmdVote
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgVote) MaxPayloadLength(pver uint32) uint32 {
	return 41 + 9 + maxScriptSize + MaxSignatureSize + 9 + 4
}

// NewMsgVote returns a new mvote message that conforms to the Message
// interface.
func NewMsgVote(outPoint wire.OutPoint, sig []byte, voteValue int32) *MsgVote {
	return &MsgVote{
		Vin: wire.TxIn{
			PreviousOutPoint: outPoint,
		},
		Sig:       sig,
		VoteValue: voteValue,
	}
}

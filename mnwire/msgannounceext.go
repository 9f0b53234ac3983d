// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MsgAnnounceExt implements the Message interface and represents an extended
// masternode election entry broadcast (dsee+).  It carries the same payload
// as the legacy announcement followed by a reward script and the percentage
// of the masternode reward redirected to it.
type MsgAnnounceExt struct {
	MsgAnnounce
	RewardAddress []byte
	RewardPercent int32
}

// BtcDecode decodes r using the protocol encoding into the receiver.  This
// is part of the Message interface implementation.
func (msg *MsgAnnounceExt) BtcDecode(r io.Reader, pver uint32) error {
	if err := msg.MsgAnnounce.BtcDecode(r, pver); err != nil {
		return err
	}
	rewardAddress, err := wire.ReadVarBytes(r, pver, maxScriptSize,
		"reward address")
	if err != nil {
		return err
	}
	msg.RewardAddress = rewardAddress
	return readElement(r, &msg.RewardPercent)
}

// BtcEncode encodes the receiver to w using the protocol encoding.  This is
// part of the Message interface implementation.
func (msg *MsgAnnounceExt) BtcEncode(w io.Writer, pver uint32) error {
	if err := msg.MsgAnnounce.BtcEncode(w, pver); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, msg.RewardAddress); err != nil {
		return err
	}
	return writeElement(w, msg.RewardPercent)
}

// Command returns the protocol command string for the message.  This is
// part of the Message interface implementation.
func (msg *MsgAnnounceExt) Command() string {
	return CmdAnnounceExt
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgAnnounceExt) MaxPayloadLength(pver uint32) uint32 {
	return msg.MsgAnnounce.MaxPayloadLength(pver) + maxScriptSize + 9 + 4
}

// NewMsgAnnounceExt returns a new dsee+ message that conforms to the
// Message interface.
func NewMsgAnnounceExt(outPoint wire.OutPoint, addr NetAddress, sig []byte,
	sigTime int64, collateralKey, operatorKey []byte, protocolVersion int32,
	rewardAddress []byte, rewardPercent int32) *MsgAnnounceExt {

	return &MsgAnnounceExt{
		MsgAnnounce: *NewMsgAnnounce(outPoint, addr, sig, sigTime,
			collateralKey, operatorKey, protocolVersion),
		RewardAddress: rewardAddress,
		RewardPercent: rewardPercent,
	}
}

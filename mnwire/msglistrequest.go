// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MsgListRequest implements the Message interface and represents a request
// for masternode announcements (dseg).  A null vin asks for the full list;
// a specific vin asks for a single entry.
type MsgListRequest struct {
	Vin wire.TxIn
}

// OutPoint returns the requested collateral outpoint.
func (msg *MsgListRequest) OutPoint() wire.OutPoint {
	return msg.Vin.PreviousOutPoint
}

// WantsFullList returns whether the request asks for the entire list rather
// than a single entry.
func (msg *MsgListRequest) WantsFullList() bool {
	return IsNullOutPoint(&msg.Vin.PreviousOutPoint)
}

// BtcDecode decodes r using the protocol encoding into the receiver.  This
// is part of the Message interface implementation.
func (msg *MsgListRequest) BtcDecode(r io.Reader, pver uint32) error {
	return readTxIn(r, pver, &msg.Vin)
}

// BtcEncode encodes the receiver to w using the protocol encoding.  This is
// part of the Message interface implementation.
func (msg *MsgListRequest) BtcEncode(w io.Writer, pver uint32) error {
	return writeTxIn(w, pver, &msg.Vin)
}

// Command returns the protocol command string for the message.  This is
// part of the Message interface implementation.
func (msg *MsgListRequest) Command() string {
	return CmdListRequest
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgListRequest) MaxPayloadLength(pver uint32) uint32 {
	return 41 + 9 + maxScriptSize
}

// NewMsgListRequest returns a new dseg message requesting the announcement
// for a single outpoint.
func NewMsgListRequest(outPoint wire.OutPoint) *MsgListRequest {
	return &MsgListRequest{
		Vin: wire.TxIn{
			PreviousOutPoint: outPoint,
		},
	}
}

// NewMsgListRequestAll returns a new dseg message requesting the full
// masternode list.
func NewMsgListRequestAll() *MsgListRequest {
	return &MsgListRequest{
		Vin: NullTxIn(),
	}
}

// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MsgPing implements the Message interface and represents a masternode
// liveness beacon (dseep).  Operators broadcast it at regular intervals to
// keep their entry enabled.  Setting Stop asks the network to disable the
// entry instead.
type MsgPing struct {
	Vin     wire.TxIn
	Sig     []byte
	SigTime int64
	Stop    bool
}

// OutPoint returns the collateral outpoint the ping refers to.
func (msg *MsgPing) OutPoint() wire.OutPoint {
	return msg.Vin.PreviousOutPoint
}

// BtcDecode decodes r using the protocol encoding into the receiver.  This
// is part of the Message interface implementation.
func (msg *MsgPing) BtcDecode(r io.Reader, pver uint32) error {
	if err := readTxIn(r, pver, &msg.Vin); err != nil {
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
	return readElement(r, &msg.Stop)
}

// BtcEncode encodes the receiver to w using the protocol encoding.  This is
// part of the Message interface implementation.
func (msg *MsgPing) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeTxIn(w, pver, &msg.Vin); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, msg.Sig); err != nil {
		return err
	}
	if err := writeElement(w, msg.SigTime); err != nil {
		return err
	}
	return writeElement(w, msg.Stop)
}

// Command returns the protocol command string for the message.  This is
// part of the Message interface implementation.
func (msg *MsgPing) Command() string {
	return CmdPing
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgPing) MaxPayloadLength(pver uint32) uint32 {
	// Vin + signature + sig time + stop flag.
	return 41 + 9 + maxScriptSize + MaxSignatureSize + 9 + 8 + 1
}

// NewMsgPing returns a new dseep message that conforms to the Message
// interface.
func NewMsgPing(outPoint wire.OutPoint, sig []byte, sigTime int64,
	stop bool) *MsgPing {

	return &MsgPing{
		Vin: wire.TxIn{
			PreviousOutPoint: outPoint,
		},
		Sig:     sig,
		SigTime: sigTime,
		Stop:    stop,
	}
}

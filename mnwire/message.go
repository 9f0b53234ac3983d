// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"fmt"
	"io"
)

// MaxMessagePayload is the maximum bytes a masternode message can be
// regardless of other individual limits imposed by messages themselves.
const MaxMessagePayload = 1024 * 1024 // 1MB

// Commands used in message headers which describe the type of message.
const (
	CmdAnnounce    = "dsee"
	CmdAnnounceExt = "dsee+"
	CmdPing        = "dseep"
	CmdVote        = "mvote"
	CmdListRequest = "dseg"
)

// Message is an interface that describes a masternode gossip message.  It is
// deliberately shaped like the base protocol message interface so the peer
// layer can treat both uniformly.
type Message interface {
	BtcDecode(io.Reader, uint32) error
	BtcEncode(io.Writer, uint32) error
	Command() string
	MaxPayloadLength(uint32) uint32
}

// MakeEmptyMessage creates a message of the appropriate concrete type based
// on the command.
func MakeEmptyMessage(command string) (Message, error) {
	var msg Message
	switch command {
	case CmdAnnounce:
		msg = &MsgAnnounce{}

	case CmdAnnounceExt:
		msg = &MsgAnnounceExt{}

	case CmdPing:
		msg = &MsgPing{}

	case CmdVote:
		msg = &MsgVote{}

	case CmdListRequest:
		msg = &MsgListRequest{}

	default:
		return nil, fmt.Errorf("unhandled command [%s]", command)
	}
	return msg, nil
}

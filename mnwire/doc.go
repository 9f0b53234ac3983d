// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mnwire implements the masternode gossip messages exchanged on top of
the regular peer-to-peer protocol.

There are five messages: the two announcement variants (dsee and dsee+), the
liveness ping (dseep), the governance vote (mvote), and the list request
(dseg).  Each message implements the Message interface so the peer layer can
frame and route it the same way it handles the base protocol messages.  All
integers are little endian and variable length byte strings carry a
compact-size length prefix, matching the serialization of the rest of the
wire protocol.
*/
package mnwire

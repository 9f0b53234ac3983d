// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mnsync implements the masternode gossip protocol.

The Manager dispatches the five masternode wire messages, drives the
stateless Validator over inbound announcements, pings and votes, applies the
accepted ones to the registry and schedules relays to the rest of the
network.  Peers that send provably malicious data are reported through the
injected misbehavior hook; everything else is dropped silently.

Dispatch is serialized by a protocol-level mutex that is distinct from the
registry mutex, so one peer's message is processed atomically with respect
to another's and the registry lock is never acquired reentrantly.
*/
package mnsync

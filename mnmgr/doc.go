// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mnmgr implements a concurrency safe masternode registry.

The Manager holds the local replica of the network's masternode directory:
one entry per collateral outpoint, together with the bookkeeping maps that
rate limit list synchronization with peers.  Entries are admitted and updated
by the gossip layer, expire when their operator stops pinging, and are pruned
by a periodic sweep once disabled, once their collateral is spent, or when
they fall below the minimum protocol version.  The registry also answers the deterministic ranking
queries used to select payment winners at a given block height, and persists
itself to a checksummed cache file (mncache.dat) so a restarting node does
not have to resynchronize the full list.
*/
package mnmgr

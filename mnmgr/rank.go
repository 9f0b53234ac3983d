// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnmgr

import (
	"encoding/binary"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Ranking is a pure function of the entry set and the block hashes: no
// clock reads, so every node that agrees on the chain and on the entries
// agrees on the winner at a given height regardless of when its registry
// was populated.

// RankedEntry pairs an entry with its 1-based rank at some height.
type RankedEntry struct {
	Rank  int
	Entry *Entry
}

// scoreKey reduces a 256-bit score hash to the 32-bit comparator used for
// ranking.
func scoreKey(h *chainhash.Hash) uint32 {
	return binary.LittleEndian.Uint32(h[:4])
}

// scoredEntry is an entry with its comparator at a fixed block hash.
type scoredEntry struct {
	key   uint32
	entry *Entry
}

// scoredLess orders scored entries descending by comparator with ties
// broken by collateral outpoint byte order, lowest first.  The order is
// total, which is what makes the ranking deterministic under map iteration.
func scoredLess(a, b *scoredEntry) bool {
	if a.key != b.key {
		return a.key > b.key
	}
	return outPointLess(&a.entry.OutPoint, &b.entry.OutPoint)
}

// scoredAtHeight collects the comparators of every eligible entry at the
// given height.  Must be called with the registry lock held.
func (m *Manager) scoredAtHeight(height int64, modulus int64,
	minProtocol int32, onlyEnabled bool) ([]*scoredEntry, bool) {

	blockHash, ok := m.cfg.Chain.BlockHash(height - modulus)
	if !ok {
		return nil, false
	}

	scored := make([]*scoredEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.ProtocolVersion < minProtocol {
			continue
		}
		if onlyEnabled && !e.IsEnabled() {
			continue
		}
		score := e.ScoreHash(blockHash)
		scored = append(scored, &scoredEntry{
			key:   scoreKey(&score),
			entry: e,
		})
	}
	return scored, true
}

// CurrentWinner returns the enabled entry with the highest ranking score at
// the given block height and modulus.
func (m *Manager) CurrentWinner(modulus, height int64,
	minProtocol int32) (*Entry, bool) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	scored, ok := m.scoredAtHeight(height, modulus, minProtocol, true)
	if !ok || len(scored) == 0 {
		return nil, false
	}

	winner := scored[0]
	for _, s := range scored[1:] {
		if scoredLess(s, winner) {
			winner = s
		}
	}
	return winner.entry.Clone(), true
}

// Rank returns the 1-based rank of the given outpoint at the given block
// height, or -1 when the block hash is unknown or the outpoint is not
// present.  When onlyActive is set, entries that are not enabled are left
// out of the ranking.
func (m *Manager) Rank(op wire.OutPoint, height int64, minProtocol int32,
	onlyActive bool) int {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, ok := m.cfg.Chain.BlockHash(height); !ok {
		return -1
	}

	scored, ok := m.scoredAtHeight(height, 1, minProtocol, onlyActive)
	if !ok {
		return -1
	}
	sort.Slice(scored, func(i, j int) bool {
		return scoredLess(scored[i], scored[j])
	})

	for i, s := range scored {
		if s.entry.OutPoint == op {
			return i + 1
		}
	}
	return -1
}

// ByRank returns the entry holding the given 1-based rank at the given
// block height.
func (m *Manager) ByRank(rank int, height int64, minProtocol int32,
	onlyActive bool) (*Entry, bool) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	scored, ok := m.scoredAtHeight(height, 1, minProtocol, onlyActive)
	if !ok {
		return nil, false
	}
	sort.Slice(scored, func(i, j int) bool {
		return scoredLess(scored[i], scored[j])
	})

	if rank < 1 || rank > len(scored) {
		return nil, false
	}
	return scored[rank-1].entry.Clone(), true
}

// Ranks returns every enabled entry meeting the minimum protocol version
// paired with its rank at the given block height, best score first.  The
// result is empty when the block hash is unknown.
func (m *Manager) Ranks(height int64, minProtocol int32) []RankedEntry {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	scored, ok := m.scoredAtHeight(height, 1, minProtocol, true)
	if !ok {
		return nil
	}
	sort.Slice(scored, func(i, j int) bool {
		return scoredLess(scored[i], scored[j])
	})

	ranks := make([]RankedEntry, 0, len(scored))
	for i, s := range scored {
		ranks = append(ranks, RankedEntry{
			Rank:  i + 1,
			Entry: s.entry.Clone(),
		})
	}
	return ranks
}

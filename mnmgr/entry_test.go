// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnmgr

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestEntryCheckTransitions(t *testing.T) {
	chain := newFakeChain()
	now := testTime.Unix()

	// A fresh pre-enabled entry with live collateral becomes enabled.
	e := testEntry(1)
	e.State = StatePreEnabled
	e.Check(now, chain)
	require.Equal(t, StateEnabled, e.State)
	require.True(t, e.IsEnabled())

	// Unseen past the expiry window it expires, spent or not.
	e.LastSeen = now - ExpirySeconds - 1
	e.Check(now, chain)
	require.Equal(t, StateExpired, e.State)

	// Seen again with spent collateral it is collateral-spent.
	e.LastSeen = now
	chain.spent[e.OutPoint] = true
	e.Check(now, chain)
	require.Equal(t, StateCollateralSpent, e.State)

	// An explicit disable sticks regardless of everything else.
	e = testEntry(2)
	e.Disable()
	e.Check(now, chain)
	require.Equal(t, StateRemove, e.State)
}

func TestEntryUpdatedWithin(t *testing.T) {
	e := testEntry(1)
	now := testTime.Unix()
	e.LastSeen = now - 100

	require.True(t, e.UpdatedWithin(now, 100))
	require.True(t, e.UpdatedWithin(now, 300))
	require.False(t, e.UpdatedWithin(now, 99))
}

func TestEntryScoreHashDeterminism(t *testing.T) {
	e := testEntry(1)
	other := testEntry(2)

	var blockHash chainhash.Hash
	for i := range blockHash {
		blockHash[i] = byte(i)
	}

	first := e.ScoreHash(&blockHash)
	second := e.ScoreHash(&blockHash)
	require.Equal(t, first, second, "score is not deterministic")

	require.NotEqual(t, first, other.ScoreHash(&blockHash),
		"distinct outpoints hashed to the same score")

	var otherBlock chainhash.Hash
	otherBlock[0] = 0xff
	require.NotEqual(t, first, e.ScoreHash(&otherBlock),
		"distinct block hashes yielded the same score")
}

func TestEntryCloneIsDeep(t *testing.T) {
	e := testEntry(1)
	c := e.Clone()

	c.Sig[0] ^= 0xff
	c.Addr.IP[0] ^= 0xff
	c.CollateralKey[0] ^= 0xff

	require.NotEqual(t, c.Sig[0], e.Sig[0])
	require.NotEqual(t, c.Addr.IP[0], e.Addr.IP[0])
	require.NotEqual(t, c.CollateralKey[0], e.CollateralKey[0])
}

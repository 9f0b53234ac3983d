// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	for n := byte(1); n <= 5; n++ {
		require.True(t, m.Add(testEntry(n)))
	}
	m.NextDsqCount()
	m.NextDsqCount()

	path := filepath.Join(t.TempDir(), CacheFilename)
	require.NoError(t, m.SaveToPath(path))

	loaded, _ := newTestManager(t)
	require.Equal(t, LoadOk, loaded.LoadFromPath(path))
	require.Equal(t, 5, loaded.Size())
	require.Equal(t, int64(2), loaded.DsqCount())

	for n := byte(1); n <= 5; n++ {
		want, ok := m.Find(testEntry(n).OutPoint)
		require.True(t, ok)
		got, ok := loaded.Find(want.OutPoint)
		require.True(t, ok, "entry %d missing after reload", n)
		require.Equal(t, want, got, "entry %d mutated by round trip", n)
	}
}

func TestCacheLoadSweepsDisabled(t *testing.T) {
	m, _ := newTestManager(t)
	fresh := testEntry(1)
	disabled := testEntry(2)
	disabled.Disable()
	require.True(t, m.Add(fresh))
	require.True(t, m.Add(disabled))

	path := filepath.Join(t.TempDir(), CacheFilename)
	require.NoError(t, m.SaveToPath(path))

	loaded, _ := newTestManager(t)
	require.Equal(t, LoadOk, loaded.LoadFromPath(path))
	require.Equal(t, 1, loaded.Size())
	_, ok := loaded.Find(disabled.OutPoint)
	require.False(t, ok, "disabled entry survived the post-load sweep")
}

func TestCacheFileMissing(t *testing.T) {
	m, _ := newTestManager(t)
	path := filepath.Join(t.TempDir(), CacheFilename)
	require.Equal(t, LoadFileMissing, m.LoadFromPath(path))
}

func TestCacheCorruptionRecovery(t *testing.T) {
	m, _ := newTestManager(t)
	for n := byte(1); n <= 5; n++ {
		require.True(t, m.Add(testEntry(n)))
	}

	path := filepath.Join(t.TempDir(), CacheFilename)
	require.NoError(t, m.SaveToPath(path))

	// Flip one byte in the middle of the file.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0644))

	loaded, _ := newTestManager(t)
	require.True(t, loaded.Add(testEntry(9)))
	require.Equal(t, LoadHashMismatch, loaded.LoadFromPath(path))
	require.Equal(t, 0, loaded.Size(),
		"registry not wiped after checksum mismatch")

	// The next save must overwrite the corrupt file with a valid one.
	require.NoError(t, loaded.SaveToPath(path))
	again, _ := newTestManager(t)
	require.Equal(t, LoadOk, again.LoadFromPath(path))
	require.Equal(t, 0, again.Size())
}

func TestCacheBadMagic(t *testing.T) {
	m, _ := newTestManager(t)
	require.True(t, m.Add(testEntry(1)))

	path := filepath.Join(t.TempDir(), CacheFilename)
	require.NoError(t, m.SaveToPath(path))

	// Corrupt the magic message and recompute the checksum so only the
	// magic check can fail.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[1] ^= 0x20
	rewriteChecksum(t, path, raw)

	loaded, _ := newTestManager(t)
	require.Equal(t, LoadBadMagic, loaded.LoadFromPath(path))
}

func TestCacheBadNetwork(t *testing.T) {
	m, _ := newTestManager(t)
	require.True(t, m.Add(testEntry(1)))

	path := filepath.Join(t.TempDir(), CacheFilename)
	require.NoError(t, m.SaveToPath(path))

	other := New(&Config{
		Chain:       newFakeChain(),
		Payments:    &fakePayments{},
		Net:         testNet + 1,
		MinProtocol: 70047,
		DataDir:     t.TempDir(),
	})
	require.Equal(t, LoadBadNetwork, other.LoadFromPath(path))
}

func TestCacheBadFormatWipes(t *testing.T) {
	m, _ := newTestManager(t)
	require.True(t, m.Add(testEntry(1)))

	path := filepath.Join(t.TempDir(), CacheFilename)
	require.NoError(t, m.SaveToPath(path))

	// Truncate the entry records but keep the header intact, then
	// recompute the checksum so the damage parses as a format error.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	data := raw[:len(raw)-32]
	data = data[:len(data)-10]
	rewriteChecksum(t, path, append(data, raw[len(raw)-32:]...))

	loaded, _ := newTestManager(t)
	require.True(t, loaded.Add(testEntry(9)))
	require.Equal(t, LoadBadFormat, loaded.LoadFromPath(path))
	require.Equal(t, 0, loaded.Size(),
		"registry not wiped after format error")
}

// rewriteChecksum recomputes the trailing double-sha256 over everything but
// the final 32 bytes of raw and writes the result to path.
func rewriteChecksum(t *testing.T, path string, raw []byte) {
	t.Helper()

	data := raw[:len(raw)-32]
	out := make([]byte, 0, len(raw))
	out = append(out, data...)
	out = append(out, doubleSha(data)...)
	require.NoError(t, os.WriteFile(path, out, 0644))
}

// doubleSha matches the checksum the cache writer uses.
func doubleSha(data []byte) []byte {
	return chainhash.DoubleHashB(data)
}

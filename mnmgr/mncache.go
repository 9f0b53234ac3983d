// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnmgr

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/phcsuite/phcd/mnwire"
)

const (
	// cacheMagic is the file specific magic message leading the cache.
	cacheMagic = "MasternodeCache"

	// CacheFilename is the name of the registry cache file inside the
	// data directory.
	CacheFilename = "mncache.dat"

	// cacheVersion is the serialization version of the entry records.
	cacheVersion = 1
)

// LoadResult describes the outcome of loading the registry cache.
type LoadResult int

// The distinct load outcomes.  Only LoadHashMismatch and LoadBadFormat wipe
// the in-memory registry; the file is overwritten by the next save in every
// failure case.
const (
	LoadOk LoadResult = iota
	LoadFileMissing
	LoadIoError
	LoadHashMismatch
	LoadBadMagic
	LoadBadNetwork
	LoadBadFormat
)

// String returns the LoadResult in human-readable form.
func (r LoadResult) String() string {
	switch r {
	case LoadOk:
		return "ok"
	case LoadFileMissing:
		return "file missing"
	case LoadIoError:
		return "i/o error"
	case LoadHashMismatch:
		return "checksum mismatch"
	case LoadBadMagic:
		return "invalid cache magic message"
	case LoadBadNetwork:
		return "invalid network magic number"
	case LoadBadFormat:
		return "invalid format"
	}
	return "unknown"
}

// cachePath returns the location of the cache file.
func (m *Manager) cachePath() string {
	return filepath.Join(m.cfg.DataDir, CacheFilename)
}

// Save writes the registry to the cache file in the data directory.
func (m *Manager) Save() error {
	return m.SaveToPath(m.cachePath())
}

// SaveToPath serializes the registry, appends the double-sha256 of the
// serialized bytes and writes the result atomically: to a temporary file
// first, synced, then renamed over the target.
func (m *Manager) SaveToPath(path string) error {
	start := time.Now()

	var buf bytes.Buffer
	m.mtx.Lock()
	err := m.serializeLocked(&buf)
	m.mtx.Unlock()
	if err != nil {
		return err
	}

	digest := chainhash.DoubleHashB(buf.Bytes())
	buf.Write(digest)

	tmpPath := path + ".new"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	log.Debugf("Written masternode cache to %s in %v (%s)", path,
		time.Since(start), m.String())
	return nil
}

// LoadFromPath reads the cache file, verifies the trailing checksum, the
// cache magic and the network magic, and replaces the registry contents
// with the stored entries.  A checksum or format failure wipes the
// in-memory registry so the next save recreates the file from scratch.  A
// sweep runs after a successful load: it marks entries that went unseen
// while the node was down as expired and deletes the ones the sweep prunes.
func (m *Manager) LoadFromPath(path string) LoadResult {
	start := time.Now()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("Masternode cache %s does not exist", path)
			return LoadFileMissing
		}
		log.Errorf("Failed to read masternode cache %s: %v", path, err)
		return LoadIoError
	}

	if len(raw) < chainhash.HashSize {
		log.Errorf("Masternode cache %s is truncated", path)
		return LoadIoError
	}

	data := raw[:len(raw)-chainhash.HashSize]
	storedDigest := raw[len(raw)-chainhash.HashSize:]
	if !bytes.Equal(chainhash.DoubleHashB(data), storedDigest) {
		log.Errorf("Masternode cache %s checksum mismatch, data "+
			"corrupted", path)
		m.Clear()
		return LoadHashMismatch
	}

	r := bytes.NewReader(data)

	magic, err := wire.ReadVarString(r, cacheVersion)
	if err != nil || magic != cacheMagic {
		log.Errorf("Masternode cache %s has an invalid magic message",
			path)
		return LoadBadMagic
	}

	var netMagic [4]byte
	if _, err := io.ReadFull(r, netMagic[:]); err != nil {
		return LoadBadMagic
	}
	if binary.LittleEndian.Uint32(netMagic[:]) != uint32(m.cfg.Net) {
		log.Errorf("Masternode cache %s has an invalid network magic "+
			"number", path)
		return LoadBadNetwork
	}

	m.mtx.Lock()
	err = m.deserializeLocked(r)
	m.mtx.Unlock()
	if err != nil {
		log.Errorf("Failed to parse masternode cache %s: %v", path, err)
		m.Clear()
		return LoadBadFormat
	}

	// Recheck every entry against the clock and prune the dead ones.
	m.Sweep()

	log.Debugf("Loaded masternode cache from %s in %v (%s)", path,
		time.Since(start), m.String())
	return LoadOk
}

// serializeLocked writes the cache header and every entry to w.  Must be
// called with the registry lock held.
func (m *Manager) serializeLocked(w io.Writer) error {
	if err := wire.WriteVarString(w, cacheVersion, cacheMagic); err != nil {
		return err
	}

	var netMagic [4]byte
	binary.LittleEndian.PutUint32(netMagic[:], uint32(m.cfg.Net))
	if _, err := w.Write(netMagic[:]); err != nil {
		return err
	}

	if err := writeCacheElement(w, uint32(cacheVersion)); err != nil {
		return err
	}
	if err := writeCacheElement(w, m.dsqCount); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, cacheVersion,
		uint64(len(m.entries))); err != nil {
		return err
	}
	for _, e := range m.entries {
		if err := serializeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

// deserializeLocked replaces the registry contents from r, which must be
// positioned after the network magic.  Must be called with the registry
// lock held.
func (m *Manager) deserializeLocked(r io.Reader) error {
	var version uint32
	if err := readCacheElement(r, &version); err != nil {
		return err
	}

	var dsqCount int64
	if err := readCacheElement(r, &dsqCount); err != nil {
		return err
	}

	count, err := wire.ReadVarInt(r, cacheVersion)
	if err != nil {
		return err
	}

	entries := make(map[wire.OutPoint]*Entry, count)
	for i := uint64(0); i < count; i++ {
		e, err := deserializeEntry(r)
		if err != nil {
			return err
		}
		entries[e.OutPoint] = e
	}

	m.clearLocked()
	m.entries = entries
	m.dsqCount = dsqCount
	return nil
}

// serializeEntry writes one entry record to w.
func serializeEntry(w io.Writer, e *Entry) error {
	if _, err := w.Write(e.OutPoint.Hash[:]); err != nil {
		return err
	}
	if err := writeCacheElement(w, e.OutPoint.Index); err != nil {
		return err
	}

	var ip [16]byte
	if e.Addr.IP != nil {
		copy(ip[:], e.Addr.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, e.Addr.Port); err != nil {
		return err
	}

	for _, field := range [][]byte{
		e.CollateralKey, e.OperatorKey, e.Sig, e.RewardAddress,
	} {
		if err := wire.WriteVarBytes(w, cacheVersion, field); err != nil {
			return err
		}
	}

	for _, field := range []interface{}{
		e.SigTime, e.LastSeen, e.LastPingTime, e.LastVoteTime,
		e.VoteValue, e.RewardPercent, e.ProtocolVersion, e.PortOpen,
		byte(e.Variant), byte(e.State),
	} {
		if err := writeCacheElement(w, field); err != nil {
			return err
		}
	}
	return nil
}

// deserializeEntry reads one entry record from r.
func deserializeEntry(r io.Reader) (*Entry, error) {
	var e Entry

	if _, err := io.ReadFull(r, e.OutPoint.Hash[:]); err != nil {
		return nil, err
	}
	if err := readCacheElement(r, &e.OutPoint.Index); err != nil {
		return nil, err
	}

	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return nil, err
	}
	e.Addr.IP = append([]byte(nil), ip[:]...)
	if err := binary.Read(r, binary.BigEndian, &e.Addr.Port); err != nil {
		return nil, err
	}

	for _, field := range []*[]byte{
		&e.CollateralKey, &e.OperatorKey, &e.Sig, &e.RewardAddress,
	} {
		b, err := wire.ReadVarBytes(r, cacheVersion,
			mnwire.MaxMessagePayload, "entry field")
		if err != nil {
			return nil, err
		}
		*field = b
	}

	var variant, state byte
	for _, field := range []interface{}{
		&e.SigTime, &e.LastSeen, &e.LastPingTime, &e.LastVoteTime,
		&e.VoteValue, &e.RewardPercent, &e.ProtocolVersion, &e.PortOpen,
		&variant, &state,
	} {
		if err := readCacheElement(r, field); err != nil {
			return nil, err
		}
	}
	e.Variant = Variant(variant)
	e.State = ActiveState(state)

	return &e, nil
}

// writeCacheElement writes the little endian representation of element to
// w.
func writeCacheElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return binary.Write(w, binary.LittleEndian, uint32(e))
	case int64:
		return binary.Write(w, binary.LittleEndian, uint64(e))
	case bool:
		var v uint8
		if e {
			v = 1
		}
		return binary.Write(w, binary.LittleEndian, v)
	}
	return binary.Write(w, binary.LittleEndian, element)
}

// readCacheElement reads the little endian representation of element from
// r.
func readCacheElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*e = int32(v)
		return nil
	case *int64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*e = int64(v)
		return nil
	case *bool:
		var v uint8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*e = v != 0
		return nil
	}
	return binary.Read(r, binary.LittleEndian, element)
}

// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnmgr

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
)

const (
	// sweepInterval is how often the maintenance handler reruns the
	// entry checks and prunes dead entries and stale rate-limit records.
	sweepInterval = time.Minute

	// dumpCacheInterval is how often the registry is written to the
	// cache file.
	dumpCacheInterval = 10 * time.Minute
)

// Config holds the collaborators and tunables the registry needs.
type Config struct {
	// Chain provides collateral status and block hashes.
	Chain ChainView

	// Payments reports payment recency for oldest-first selection.
	Payments PaymentLedger

	// Net is the network magic written to, and required from, the cache
	// file.
	Net wire.BitcoinNet

	// MinProtocol is the minimum protocol version an entry must
	// advertise to survive a sweep.
	MinProtocol int32

	// DataDir is the directory holding the cache file.
	DataDir string

	// TimeSource returns the registry clock.  When nil, time.Now is
	// used.  Tests and nodes with an adjusted network clock override it.
	TimeSource func() time.Time
}

// Manager is the masternode registry.  One mutex covers the entry set, the
// three rate-limit maps and the dsq counter; every exported operation is
// atomic under it.  Lock acquisition is never nested.
type Manager struct {
	started  int32
	shutdown int32

	cfg Config

	mtx             sync.Mutex
	entries         map[wire.OutPoint]*Entry
	askedUsForList  map[string]int64
	weAskedForList  map[string]int64
	weAskedForEntry map[wire.OutPoint]int64
	dsqCount        int64

	rng     *rand.Rand
	timeNow func() time.Time

	wg   sync.WaitGroup
	quit chan struct{}
}

// New returns a new masternode registry.  Use Start to begin the periodic
// sweep and cache writes.
func New(cfg *Config) *Manager {
	timeNow := cfg.TimeSource
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Manager{
		cfg:             *cfg,
		entries:         make(map[wire.OutPoint]*Entry),
		askedUsForList:  make(map[string]int64),
		weAskedForList:  make(map[string]int64),
		weAskedForEntry: make(map[wire.OutPoint]int64),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		timeNow:         timeNow,
		quit:            make(chan struct{}),
	}
}

// now returns the registry clock as a unix timestamp.
func (m *Manager) now() int64 {
	return m.timeNow().Unix()
}

// Start loads the cache file and begins the maintenance handler which
// periodically sweeps the registry and rewrites the cache.
func (m *Manager) Start() {
	// Already started?
	if atomic.AddInt32(&m.started, 1) != 1 {
		return
	}

	log.Trace("Starting masternode manager")

	result := m.LoadFromPath(m.cachePath())
	log.Infof("Masternode cache load: %v (%d entries)", result, m.Size())

	m.wg.Add(1)
	go m.maintenanceHandler()
}

// Stop gracefully shuts down the registry by stopping the maintenance
// handler and flushing the cache.
func (m *Manager) Stop() error {
	if atomic.AddInt32(&m.shutdown, 1) != 1 {
		log.Warnf("Masternode manager is already in the process of " +
			"shutting down")
		return nil
	}

	log.Infof("Masternode manager shutting down")
	close(m.quit)
	m.wg.Wait()
	return nil
}

// maintenanceHandler periodically sweeps the registry and dumps it to the
// cache file.  It must be run as a goroutine.
func (m *Manager) maintenanceHandler() {
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()
	dumpTicker := time.NewTicker(dumpCacheInterval)
	defer dumpTicker.Stop()

out:
	for {
		select {
		case <-sweepTicker.C:
			m.Sweep()

		case <-dumpTicker.C:
			if err := m.Save(); err != nil {
				log.Errorf("Failed to write masternode "+
					"cache: %v", err)
			}

		case <-m.quit:
			break out
		}
	}

	if err := m.Save(); err != nil {
		log.Errorf("Failed to write masternode cache: %v", err)
	}
	m.wg.Done()
	log.Trace("Masternode manager maintenance handler done")
}

// Add inserts a new entry.  It returns false without modifying the registry
// when an entry with the same collateral outpoint already exists.
func (m *Manager) Add(e *Entry) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, exists := m.entries[e.OutPoint]; exists {
		return false
	}

	m.entries[e.OutPoint] = e.Clone()
	log.Debugf("Adding new masternode %s - %d now", e.Addr.String(),
		len(m.entries))
	return true
}

// Remove deletes the entry with the given collateral outpoint, if present.
func (m *Manager) Remove(op wire.OutPoint) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if e, exists := m.entries[op]; exists {
		log.Debugf("Removing masternode %s - %d now", e.Addr.String(),
			len(m.entries)-1)
		delete(m.entries, op)
	}
}

// Find returns a copy of the entry with the given collateral outpoint.
func (m *Manager) Find(op wire.OutPoint) (*Entry, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	e, exists := m.entries[op]
	if !exists {
		return nil, false
	}
	return e.Clone(), true
}

// FindByOperatorKey returns a copy of the entry whose operator public key
// matches the passed key.
func (m *Manager) FindByOperatorKey(operatorKey []byte) (*Entry, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for _, e := range m.entries {
		if bytes.Equal(e.OperatorKey, operatorKey) {
			return e.Clone(), true
		}
	}
	return nil, false
}

// WithEntry runs fn against the stored entry under the registry lock and
// returns whether the entry existed.  It is how the gossip layer performs
// read-modify-write transactions without holding stale handles.
func (m *Manager) WithEntry(op wire.OutPoint, fn func(*Entry)) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	e, exists := m.entries[op]
	if !exists {
		return false
	}
	fn(e)
	return true
}

// CheckEntry reruns the state check on a single entry and returns the
// resulting state.
func (m *Manager) CheckEntry(op wire.OutPoint) (ActiveState, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	e, exists := m.entries[op]
	if !exists {
		return 0, false
	}
	e.Check(m.now(), m.cfg.Chain)
	return e.State, true
}

// Entries returns a copy of every entry in the registry.
func (m *Manager) Entries() []*Entry {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	all := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e.Clone())
	}
	return all
}

// Size returns the number of entries in the registry.
func (m *Manager) Size() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return len(m.entries)
}

// PickRandom returns a uniformly chosen enabled entry.
func (m *Manager) PickRandom() (*Entry, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	var eligible []*Entry
	for _, e := range m.entries {
		if e.IsEnabled() {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}
	return eligible[m.rng.Intn(len(eligible))].Clone(), true
}

// PickRandomExcluding returns a uniformly chosen enabled entry meeting the
// minimum protocol version whose outpoint is not in the excluded set.
func (m *Manager) PickRandomExcluding(exclude []wire.OutPoint,
	minProtocol int32) (*Entry, bool) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	var eligible []*Entry
	for _, e := range m.entries {
		if !e.IsEnabled() || e.ProtocolVersion < minProtocol {
			continue
		}
		if outPointIn(&e.OutPoint, exclude) {
			continue
		}
		eligible = append(eligible, e)
	}
	if len(eligible) == 0 {
		return nil, false
	}
	return eligible[m.rng.Intn(len(eligible))].Clone(), true
}

// PickOldestNotIn returns the enabled entry with the greatest time since
// its last payment, among entries whose collateral age meets the minimum
// and whose outpoint is not in the excluded set.
func (m *Manager) PickOldestNotIn(exclude []wire.OutPoint,
	minInputAge int32) (*Entry, bool) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	var oldest *Entry
	var oldestAge int64
	for _, e := range m.entries {
		e.Check(now, m.cfg.Chain)
		if !e.IsEnabled() {
			continue
		}
		if e.InputAge(m.cfg.Chain) < minInputAge {
			continue
		}
		if outPointIn(&e.OutPoint, exclude) {
			continue
		}
		age := e.SecondsSincePayment(m.cfg.Payments)
		if oldest == nil || age > oldestAge {
			oldest = e
			oldestAge = age
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest.Clone(), true
}

// CountEnabled rechecks every entry and returns how many are enabled and
// meet the minimum protocol version.  A negative version counts against the
// registry's configured minimum.
func (m *Manager) CountEnabled(minProtocol int32) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if minProtocol < 0 {
		minProtocol = m.cfg.MinProtocol
	}

	now := m.now()
	count := 0
	for _, e := range m.entries {
		e.Check(now, m.cfg.Chain)
		if e.ProtocolVersion < minProtocol || !e.IsEnabled() {
			continue
		}
		count++
	}
	return count
}

// CountAboveProtocol rechecks every entry and returns how many are enabled
// at or above the given protocol version.  Unlike CountEnabled it never
// falls back to the configured minimum.
func (m *Manager) CountAboveProtocol(protocolVersion int32) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	count := 0
	for _, e := range m.entries {
		e.Check(now, m.cfg.Chain)
		if e.ProtocolVersion < protocolVersion || !e.IsEnabled() {
			continue
		}
		count++
	}
	return count
}

// Sweep reruns the state checks on every entry, deletes entries that are
// marked for removal, lost their collateral or fell below the minimum
// protocol version, and purges rate-limit records whose deadline passed.
func (m *Manager) Sweep() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	for op, e := range m.entries {
		e.Check(now, m.cfg.Chain)
		if e.State == StateRemove || e.State == StateCollateralSpent ||
			e.ProtocolVersion < m.cfg.MinProtocol {

			log.Debugf("Removing inactive masternode %s - %d now",
				e.Addr.String(), len(m.entries)-1)
			delete(m.entries, op)
		}
	}

	for peer, deadline := range m.askedUsForList {
		if deadline < now {
			delete(m.askedUsForList, peer)
		}
	}
	for peer, deadline := range m.weAskedForList {
		if deadline < now {
			delete(m.weAskedForList, peer)
		}
	}
	for op, deadline := range m.weAskedForEntry {
		if deadline < now {
			delete(m.weAskedForEntry, op)
		}
	}
}

// CheckListRequest records that the given peer asked for the full list and
// returns whether the request should be honored.  A second request inside
// the ask interval is refused.
func (m *Manager) CheckListRequest(peer string) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	if deadline, exists := m.askedUsForList[peer]; exists && now < deadline {
		return false
	}
	m.askedUsForList[peer] = now + ListAskInterval
	return true
}

// ShouldAskForList returns whether enough time has passed to ask the given
// peer for the full list again, and marks the peer as asked when it has.
func (m *Manager) ShouldAskForList(peer string) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	if deadline, exists := m.weAskedForList[peer]; exists && now < deadline {
		return false
	}
	m.weAskedForList[peer] = now + ListAskInterval
	return true
}

// ShouldAskForEntry returns whether enough time has passed to ask a peer
// for the given missing entry again, and marks the entry as asked when it
// has.
func (m *Manager) ShouldAskForEntry(op wire.OutPoint) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	if deadline, exists := m.weAskedForEntry[op]; exists && now < deadline {
		return false
	}
	m.weAskedForEntry[op] = now + EntryAskInterval
	return true
}

// NextDsqCount returns the current mixing-queue counter and advances it.
func (m *Manager) NextDsqCount() int64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	count := m.dsqCount
	m.dsqCount++
	return count
}

// DsqCount returns the current mixing-queue counter.
func (m *Manager) DsqCount() int64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.dsqCount
}

// Clear empties the registry, the rate-limit maps and the dsq counter.
func (m *Manager) Clear() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.clearLocked()
}

// clearLocked is Clear with the lock already held.
func (m *Manager) clearLocked() {
	m.entries = make(map[wire.OutPoint]*Entry)
	m.askedUsForList = make(map[string]int64)
	m.weAskedForList = make(map[string]int64)
	m.weAskedForEntry = make(map[wire.OutPoint]int64)
	m.dsqCount = 0
}

// String returns a one line summary of the registry.
func (m *Manager) String() string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return fmt.Sprintf("masternodes: %d, peers who asked us for the "+
		"list: %d, peers we asked for the list: %d, entries we asked "+
		"for: %d, dsqCount: %d", len(m.entries),
		len(m.askedUsForList), len(m.weAskedForList),
		len(m.weAskedForEntry), m.dsqCount)
}

// outPointIn returns whether op is in the set.
func outPointIn(op *wire.OutPoint, set []wire.OutPoint) bool {
	for i := range set {
		if set[i] == *op {
			return true
		}
	}
	return false
}

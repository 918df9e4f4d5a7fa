package godb

import "sync"

// lockManager implements per-page S/X locking with strict two-phase
// locking semantics (see spec's acquire table): a single coarse mutex
// guards both the forward index (key -> holders) and the reverse index
// (tid -> keys held), which is all the concurrency this size of lock table
// needs -- lock striping would only add complexity here.
type lockManager struct {
	mu      sync.Mutex
	holders map[any]map[TransactionID]RWPerm
	heldBy  map[TransactionID]map[any]RWPerm

	// waits-for graph, used only as a fast-path deadlock check layered on
	// top of the timeout (see SPEC_FULL §6): a transaction whose request
	// would close a cycle aborts immediately instead of waiting out the
	// retry loop. The timeout alone remains sufficient for liveness.
	waitsFor map[TransactionID]map[TransactionID]struct{}
}

func newLockManager() *lockManager {
	return &lockManager{
		holders:  make(map[any]map[TransactionID]RWPerm),
		heldBy:   make(map[TransactionID]map[any]RWPerm),
		waitsFor: make(map[TransactionID]map[TransactionID]struct{}),
	}
}

// acquire attempts, non-blocking, to grant tid a lock of the given mode on
// key. Returns true iff granted.
func (lm *lockManager) acquire(tid TransactionID, key any, perm RWPerm) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	holders := lm.holders[key]
	if mode, already := holders[tid]; already {
		if perm == ReadPerm || mode == WritePerm {
			return true // no-op: already hold S for an S request, or already hold X
		}
		// tid holds S, wants X: upgrade in place iff sole holder
		if len(holders) == 1 {
			holders[tid] = WritePerm
			lm.heldBy[tid][key] = WritePerm
			return true
		}
		lm.addWait(tid, holders)
		return false
	}

	if perm == ReadPerm {
		for other, mode := range holders {
			if other != tid && mode == WritePerm {
				lm.addWait(tid, holders)
				return false
			}
		}
	} else if len(holders) > 0 {
		lm.addWait(tid, holders)
		return false
	}

	if holders == nil {
		holders = make(map[TransactionID]RWPerm)
		lm.holders[key] = holders
	}
	holders[tid] = perm
	if lm.heldBy[tid] == nil {
		lm.heldBy[tid] = make(map[any]RWPerm)
	}
	lm.heldBy[tid][key] = perm
	delete(lm.waitsFor, tid)
	return true
}

func (lm *lockManager) addWait(tid TransactionID, holders map[TransactionID]RWPerm) {
	deps := lm.waitsFor[tid]
	if deps == nil {
		deps = make(map[TransactionID]struct{})
		lm.waitsFor[tid] = deps
	}
	for other := range holders {
		if other != tid {
			deps[other] = struct{}{}
		}
	}
}

// wouldDeadlock reports whether tid's current wait set closes a cycle in
// the waits-for graph.
func (lm *lockManager) wouldDeadlock(tid TransactionID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	visited := make(map[TransactionID]bool)
	var dfs func(TransactionID) bool
	dfs = func(cur TransactionID) bool {
		if cur == tid {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		for next := range lm.waitsFor[cur] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	for next := range lm.waitsFor[tid] {
		if dfs(next) {
			return true
		}
	}
	return false
}

// holds reports the mode tid holds key in, if any.
func (lm *lockManager) holds(tid TransactionID, key any) (RWPerm, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	mode, ok := lm.heldBy[tid][key]
	return mode, ok
}

// keysHeldBy returns a snapshot of (key, mode) pairs tid currently holds.
func (lm *lockManager) keysHeldBy(tid TransactionID) map[any]RWPerm {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	out := make(map[any]RWPerm, len(lm.heldBy[tid]))
	for k, v := range lm.heldBy[tid] {
		out[k] = v
	}
	return out
}

// release drops tid's lock on key, if held.
func (lm *lockManager) release(tid TransactionID, key any) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.releaseLocked(tid, key)
}

func (lm *lockManager) releaseLocked(tid TransactionID, key any) {
	if holders := lm.holders[key]; holders != nil {
		delete(holders, tid)
		if len(holders) == 0 {
			delete(lm.holders, key)
		}
	}
	if keys := lm.heldBy[tid]; keys != nil {
		delete(keys, key)
	}
}

// releaseAll drops every lock tid holds.
func (lm *lockManager) releaseAll(tid TransactionID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for key := range lm.heldBy[tid] {
		lm.releaseLocked(tid, key)
	}
	delete(lm.heldBy, tid)
	delete(lm.waitsFor, tid)
	for _, deps := range lm.waitsFor {
		delete(deps, tid)
	}
}

package godb

/* BufferPool caches pages read from DBFiles and is the sole arbiter of page
level locking and transaction commit/abort. It has a fixed capacity to bound
GoDB's memory footprint.

Locking is strict two-phase: a transaction acquires a lock the first time it
touches a page and holds it until commit or abort (see lockManager). The pool
is NO-STEAL -- a dirty page is never written to its file before its owning
transaction commits -- and FORCE -- every page a transaction dirtied is
flushed at commit, synchronously, after its WAL update record is forced. This
trades recovery complexity (there is none: NO-STEAL means a crash never
leaves a partial write on disk) for a commit that blocks on I/O.

The sole deadlock-avoidance mechanism is a randomized retry timeout
(lockTimeout, 1-3s): a GetPage call that cannot acquire its lock keeps
retrying until the timeout elapses, then aborts its own transaction. A
waits-for cycle check in lockManager is layered on top purely as a fast
path; removing it would not change correctness, only how long a doomed
transaction waits before aborting.
*/

import (
	"sync"
	"time"
)

// RWPerm is the permission requested when fetching a page: shared (read) or
// exclusive (write).
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

type BufferPool struct {
	capacity int
	cache    map[any]Page
	locks    *lockManager
	logFile  *LogFile

	mu                  sync.Mutex
	currentTransactions map[TransactionID]struct{}
}

// NewBufferPool creates a buffer pool holding at most numPages pages.
func NewBufferPool(numPages int) (*BufferPool, error) {
	return &BufferPool{
		capacity:            numPages,
		cache:               make(map[any]Page),
		locks:               newLockManager(),
		currentTransactions: make(map[TransactionID]struct{}),
	}, nil
}

// SetLogFile attaches a WAL; commits force this log before flushing dirtied
// pages. A pool with no log attached still enforces NO-STEAL/FORCE, it just
// cannot produce a durability trail.
func (bp *BufferPool) SetLogFile(lf *LogFile) {
	bp.logFile = lf
}

// BeginTransaction registers tid as live. Returns an error if tid is already
// running.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, alive := bp.currentTransactions[tid]; alive {
		return newErr(IllegalOperationError, "transaction %d is already running", tid)
	}
	bp.currentTransactions[tid] = struct{}{}
	if bp.logFile != nil {
		bp.logFile.LogBegin(tid)
	}
	return nil
}

// GetPage returns the page identified by (file, pageNumber), acquiring perm
// on behalf of tid first. The call blocks, retrying on a short interval,
// until the lock is granted or lockTimeout elapses; on timeout tid is
// aborted and a TransactionAbortedError is returned. A request that would
// close a waits-for cycle aborts immediately rather than waiting out the
// timeout.
func (bp *BufferPool) GetPage(file DBFile, pageNumber int, tid TransactionID, perm RWPerm) (Page, error) {
	key := file.pageKey(pageNumber)

	bp.mu.Lock()
	_, alive := bp.currentTransactions[tid]
	bp.mu.Unlock()
	if !alive {
		return nil, newErr(IllegalOperationError, "transaction %d is not running", tid)
	}

	deadline := time.Now().Add(time.Duration(lockTimeout()) * time.Millisecond)
	for {
		if bp.locks.acquire(tid, key, perm) {
			break
		}
		if bp.locks.wouldDeadlock(tid) || time.Now().After(deadline) {
			bp.AbortTransaction(tid)
			return nil, newErr(TransactionAbortedError, "transaction %d timed out waiting for a lock on page %v", tid, key)
		}
		time.Sleep(5 * time.Millisecond)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if page, ok := bp.cache[key]; ok {
		return page, nil
	}
	if len(bp.cache) >= bp.capacity {
		if err := bp.evictPageLocked(); err != nil {
			bp.locks.release(tid, key)
			return nil, err
		}
	}
	page, err := file.readPage(pageNumber)
	if err != nil {
		bp.locks.release(tid, key)
		return nil, err
	}
	bp.cache[key] = page
	return page, nil
}

// ReleaseLock drops tid's lock on key early, before commit. HeapFile's
// insert scan uses this to give up a write lock on a page it finds full
// without waiting for the whole transaction to end, at the cost of strict
// two-phase locking on that one page.
func (bp *BufferPool) ReleaseLock(tid TransactionID, key any) {
	bp.locks.release(tid, key)
}

// noteDirtied re-inserts a freshly-dirtied page into the cache, evicting
// first if it would overflow capacity and the page is not already resident.
func (bp *BufferPool) noteDirtied(file DBFile, pageNo int, page Page) {
	key := file.pageKey(pageNo)
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, resident := bp.cache[key]; !resident && len(bp.cache) >= bp.capacity {
		bp.evictPageLocked()
	}
	bp.cache[key] = page
}

// evictPageLocked discards one clean page from the cache (NO-STEAL forbids
// evicting a dirty one). Returns BufferPoolFullError if every cached page is
// dirty. Caller must hold bp.mu.
func (bp *BufferPool) evictPageLocked() error {
	for key, page := range bp.cache {
		if _, dirty := page.isDirty(); !dirty {
			delete(bp.cache, key)
			return nil
		}
	}
	return newErr(BufferPoolFullError, "buffer pool full of dirty pages")
}

// CommitTransaction flushes every page tid dirtied (forcing the WAL first)
// and releases all of tid's locks.
func (bp *BufferPool) CommitTransaction(tid TransactionID) {
	bp.transactionComplete(tid, true)
}

// AbortTransaction discards every page tid dirtied, without writing any of
// them, and releases all of tid's locks. NO-STEAL guarantees none of those
// pages ever reached disk, so discarding the in-memory copy is sufficient.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	bp.transactionComplete(tid, false)
}

func (bp *BufferPool) transactionComplete(tid TransactionID, commit bool) {
	bp.mu.Lock()
	held := bp.locks.keysHeldBy(tid)

	for key, mode := range held {
		if mode != WritePerm {
			continue
		}
		page, resident := bp.cache[key]
		if !resident {
			continue
		}
		dirtyTid, dirty := page.isDirty()
		if !dirty || dirtyTid != tid {
			continue
		}
		if commit {
			if bp.logFile != nil {
				bp.logFile.LogUpdate(tid, page, page)
				bp.logFile.Force()
			}
			if err := page.getFile().flushPage(page); err == nil {
				if hp, ok := page.(*heapPage); ok {
					hp.setBeforeImage()
				}
			}
		} else {
			delete(bp.cache, key)
		}
	}

	if bp.logFile != nil {
		if commit {
			bp.logFile.LogCommit(tid)
		} else {
			bp.logFile.LogAbort(tid)
		}
		bp.logFile.Force()
	}
	delete(bp.currentTransactions, tid)
	bp.mu.Unlock()

	bp.locks.releaseAll(tid)
}

// FlushAllPages flushes every dirty page in the cache, regardless of owner.
// Intended for tests and for a clean shutdown path, not for use mid
// transaction. Like the commit path, this writes-before-flush: the WAL gets
// an UPDATE record (forced) before the page bytes reach disk. Unlike commit,
// it does not rebind the before-image -- that happens only at commit, per
// the flush protocol.
func (bp *BufferPool) FlushAllPages() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, page := range bp.cache {
		dirtyTid, dirty := page.isDirty()
		if !dirty {
			continue
		}
		if bp.logFile != nil {
			bp.logFile.LogUpdate(dirtyTid, page, page)
			bp.logFile.Force()
		}
		page.getFile().flushPage(page)
	}
}

// FlushPages flushes only the pages dirtied by tid. Same write-before-flush
// and no-before-image-rebind rules as FlushAllPages.
func (bp *BufferPool) FlushPages(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, page := range bp.cache {
		dirtyTid, dirty := page.isDirty()
		if !dirty || dirtyTid != tid {
			continue
		}
		if bp.logFile != nil {
			bp.logFile.LogUpdate(tid, page, page)
			bp.logFile.Force()
		}
		if err := page.getFile().flushPage(page); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage drops a page from the cache without flushing it.
// AbortTransaction does the same for each page tid dirtied, directly under
// bp.mu, without calling this method.
func (bp *BufferPool) DiscardPage(key any) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.cache, key)
}

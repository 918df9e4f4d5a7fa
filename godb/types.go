package godb

import (
	"math/rand"
	"sync/atomic"
)

// PageSize is the fixed size, in bytes, of every page in every HeapFile.
const PageSize = 4096

// StringLength is the fixed width, in bytes, of a serialized string field
// (not counting its 4-byte length prefix). Longer strings are truncated.
const StringLength = 32

// TransactionID identifies a transaction across the buffer pool, lock
// manager, and log file.
type TransactionID int64

var tidCounter int64

// NewTID allocates a fresh TransactionID. Safe for concurrent use.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&tidCounter, 1))
}

// lockTimeout returns a randomized retry-loop timeout in [1s, 3s), per the
// buffer pool's sole deadlock-avoidance mechanism.
func lockTimeout() int64 {
	return 1000 + rand.Int63n(2000)
}

// Page is the unit of I/O, caching, and locking in the buffer pool. HeapPage
// is the only implementation in this module.
type Page interface {
	// isDirty returns the transaction that last dirtied this page, and
	// whether the page is dirty at all (per spec: isDirty returns
	// tid-or-none).
	isDirty() (TransactionID, bool)
	// setDirty marks (or clears) the page as dirtied by tid.
	setDirty(tid TransactionID, dirty bool)
	// getFile returns the DBFile this page belongs to.
	getFile() DBFile
}

// DBFile is the interface implemented by on-disk table storage. HeapFile is
// the only implementation in this module; see spec §6 for the full contract
// (readPage, writePage, numPages, insertTuple, deleteTuple, iterator).
type DBFile interface {
	Descriptor() *TupleDesc
	insertTuple(t *Tuple, tid TransactionID) error
	deleteTuple(t *Tuple, tid TransactionID) error
	readPage(pageNo int) (Page, error)
	flushPage(p Page) error
	NumPages() int
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
	pageKey(pageNo int) any
}

// Operator is the pull-based iterator contract every relational operator
// (Scan, Filter, Join, Project, OrderBy, Limit, Aggregate, Insert, Delete)
// implements. Iteration is single-threaded per operator tree: a tree is
// opened once per transaction by calling Iterator, which returns a closure
// yielding tuples one at a time until it returns (nil, nil).
type Operator interface {
	Descriptor() *TupleDesc
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

package godb

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered, paged collection of tuples backed by a regular
// file. It is a public type because external callers (the catalog, CSV
// bulk-load) instantiate it directly.
type HeapFile struct {
	backingFile string
	tupleDesc   *TupleDesc
	bufPool     *BufferPool
	tableID     int64

	growMu   sync.Mutex
	numPages int
}

// NewHeapFile constructs a HeapFile backed by fromFile, which may be empty
// or a previously created heap file. tableID is derived from the file's
// absolute path so it is stable across process restarts.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	abs, err := filepath.Abs(fromFile)
	if err != nil {
		abs = fromFile
	}
	hf := &HeapFile{
		backingFile: fromFile,
		tupleDesc:   td,
		bufPool:     bp,
		tableID:     stableHash(abs),
	}
	hf.numPages = hf.computeNumPages()
	return hf, nil
}

// stableHash hashes an absolute path into a table identifier. Grounded on
// the same stable-identity requirement as [HeapFile.pageKey]'s heapHash,
// but suitable for use as the tableID half of a [PageID].
func stableHash(absPath string) int64 {
	h := fnv.New64a()
	h.Write([]byte(absPath))
	return int64(h.Sum64())
}

// BackingFile returns the name of the backing file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

func (f *HeapFile) computeNumPages() int {
	fi, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	return int(fi.Size() / PageSize)
}

// NumPages returns numPages = floor(fileLength / PageSize).
func (f *HeapFile) NumPages() int {
	f.growMu.Lock()
	defer f.growMu.Unlock()
	return f.numPages
}

// Descriptor returns the TupleDesc supplied to NewHeapFile.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

func (f *HeapFile) openRW() (*os.File, error) {
	return os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
}

// readPage seeks to pid.page*PageSize, reads exactly PageSize bytes, and
// deserializes a heapPage. Fails with PageNotFoundError if the offset is
// past end-of-file.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	if pageNo < 0 || pageNo >= f.computeNumPages() {
		return nil, newErr(PageNotFoundError, "page %d is out of range for %s", pageNo, f.backingFile)
	}
	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.backingFile, err)
	}
	defer file.Close()

	raw := make([]byte, PageSize)
	if _, err := file.Seek(int64(pageNo)*PageSize, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(file, raw); err != nil {
		return nil, fmt.Errorf("reading page %d of %s: %w", pageNo, f.backingFile, err)
	}

	hp := &heapPage{pid: PageID{tableID: f.tableID, pageNo: pageNo}, desc: f.tupleDesc, file: f}
	if err := hp.initFromBuffer(raw); err != nil {
		return nil, err
	}
	return hp, nil
}

// writePage seeks to page.pid.page*PageSize and writes PageSize bytes. The
// file may only be extended if page.pid.page == numPages (the contiguity
// invariant): heap files grow by whole pages, in order.
func (f *HeapFile) writePage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return fmt.Errorf("writePage: not a heap page: %T", p)
	}
	if hp.pid.pageNo > f.computeNumPages() {
		return newErr(PageNotFoundError, "page %d would leave a gap in %s", hp.pid.pageNo, f.backingFile)
	}

	file, err := f.openRW()
	if err != nil {
		return err
	}
	defer file.Close()

	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	if _, err := file.WriteAt(buf.Bytes(), int64(hp.pid.pageNo)*PageSize); err != nil {
		return err
	}
	return nil
}

// flushPage writes p to disk and clears its dirty flag. Called by the
// buffer pool as part of its commit flush protocol (after the WAL update
// record has been forced).
func (f *HeapFile) flushPage(p Page) error {
	if err := f.writePage(p); err != nil {
		return err
	}
	p.setDirty(0, false)
	return nil
}

// insertTuple scans pages 0..numPages-1 for room, acquiring a write lock on
// each through the buffer pool. A page found full has its lock released
// immediately if this scan was what acquired it (trading strict 2PL for
// reduced contention on hot tables -- see spec's open question on this); a
// lock tid already held before the scan is kept, so a page tid has dirtied
// stays locked and is still flushed or discarded when tid ends. If no
// existing page had room, a fresh page is appended and the tuple is inserted
// there.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) error {
	if !t.Desc.equals(f.tupleDesc) {
		return newErr(IncompatibleTypesError, "tuple schema does not match %s", f.backingFile)
	}

	n := f.NumPages()
	for pageNo := 0; pageNo < n; pageNo++ {
		_, alreadyHeld := f.bufPool.locks.holds(tid, f.pageKey(pageNo))
		page, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
		if err != nil {
			return err
		}
		hp := page.(*heapPage)
		if hp.numEmptySlots() == 0 {
			if !alreadyHeld {
				f.bufPool.ReleaseLock(tid, f.pageKey(pageNo))
			}
			continue
		}
		if _, err := hp.insertTuple(t); err != nil {
			return err
		}
		hp.setDirty(tid, true)
		f.bufPool.noteDirtied(f, pageNo, hp)
		return nil
	}

	return f.appendAndInsert(t, tid)
}

// appendAndInsert extends the file by one zeroed PageSize block, then
// re-opens the new page through the buffer pool with write intent and
// inserts there.
func (f *HeapFile) appendAndInsert(t *Tuple, tid TransactionID) error {
	f.growMu.Lock()
	pageNo := f.numPages
	file, err := f.openRW()
	if err != nil {
		f.growMu.Unlock()
		return err
	}
	_, err = file.WriteAt(make([]byte, PageSize), int64(pageNo)*PageSize)
	file.Close()
	if err != nil {
		f.growMu.Unlock()
		return err
	}
	f.numPages++
	f.growMu.Unlock()

	page, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	hp := page.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	f.bufPool.noteDirtied(f, pageNo, hp)
	return nil
}

// deleteTuple acquires a write lock on t.Rid's page through the buffer pool
// and clears its slot.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) error {
	rid, ok := t.Rid.(RecordID)
	if !ok {
		return newErr(TupleNotFoundError, "tuple has no record id to delete")
	}
	page, err := f.bufPool.GetPage(f, rid.PID.pageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	hp := page.(*heapPage)
	if err := hp.deleteTuple(rid); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	f.bufPool.noteDirtied(f, rid.PID.pageNo, hp)
	t.Rid = nil
	return nil
}

// Iterator yields every used tuple across the file in (pageNumber, slot)
// order. Pages are fetched lazily through the buffer pool with read intent;
// the iterator holds no locks of its own beyond what the buffer pool
// acquires. rewind is equivalent to close-then-open: call Iterator again
// for a fresh pass.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pageNo := 0
	var pageIter func() (*Tuple, error)

	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				page, err := f.bufPool.GetPage(f, pageNo, tid, ReadPerm)
				if err != nil {
					return nil, err
				}
				pageIter = page.(*heapPage).tupleIter()
			}
			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				pageIter = nil
				pageNo++
				continue
			}
			out := *t
			out.Desc = *f.tupleDesc
			return &out, nil
		}
	}, nil
}

// heapHash is the key type used by the buffer pool's page cache.
type heapHash struct {
	FileName string
	PageNo   int
}

// pageKey returns the buffer pool cache key for page pgNo of this file.
func (f *HeapFile) pageKey(pgNo int) any {
	return heapHash{FileName: f.backingFile, PageNo: pgNo}
}

// LoadFromCSV loads the contents of file into the heap file. hasHeader
// skips the first line; sep separates fields; skipLastField drops a
// trailing separator some TPC-style datasets leave on every line.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		lineNo++
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.tupleDesc.Fields) {
			return newErr(MalformedDataError, "LoadFromCSV: line %d (%s) has %d fields, expected %d", lineNo, line, len(fields), len(f.tupleDesc.Fields))
		}

		values := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.tupleDesc.Fields[i].Ftype {
			case IntType:
				v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err != nil {
					return newErr(TypeMismatchError, "LoadFromCSV: line %d: %q is not an int", lineNo, raw)
				}
				values[i] = IntField{v}
			case StringType:
				s := raw
				if len(s) > StringLength {
					s = s[:StringLength]
				}
				values[i] = StringField{s}
			}
		}

		tid := NewTID()
		if err := f.bufPool.BeginTransaction(tid); err != nil {
			return err
		}
		newT := &Tuple{Desc: *f.tupleDesc, Fields: values}
		if err := f.insertTuple(newT, tid); err != nil {
			f.bufPool.AbortTransaction(tid)
			return err
		}
		f.bufPool.CommitTransaction(tid)
	}
	return scanner.Err()
}

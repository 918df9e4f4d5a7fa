package godb

/* HeapPage implements the Page interface for pages of HeapFiles.

In GoDB all tuples are fixed length, which means that given a TupleDesc it is
possible to figure out how many tuple "slots" fit on a given page.

Unlike the course's reference header (a pair of int32 slot counts), this
page's header is a packed bitmap: one bit per slot, bit=1 meaning the slot is
occupied. The bitmap is padded up to a whole number of bytes, bit i of byte k
addressing slot 8k+i. Given a tuple width W in bytes:

	N = floor((PageSize*8) / (W*8 + 1))   // slots
	headerBytes = ceil(N / 8)

Slots follow the header, back to back, W bytes each; any bytes left over at
the end of the page are zero padding.

A page also keeps a before-image: a copy of its own serialized bytes,
captured at construction/deserialization and re-captured by setBeforeImage
at commit. The before-image is what the buffer pool's flush protocol hands
to the log as the "before" half of an UPDATE record.
*/

import (
	"bytes"
	"errors"
	"fmt"
)

type heapPage struct {
	pid         PageID
	desc        *TupleDesc
	file        *HeapFile
	numSlots    int
	tuples      []*Tuple // tuples[i] == nil iff slot i is empty
	dirtyTid    TransactionID
	dirty       bool
	beforeImage []byte
}

// bytesPerTuple returns the serialized width, in bytes, of a tuple with the
// given schema.
func bytesPerTuple(desc *TupleDesc) (int, error) {
	w := 0
	for _, f := range desc.Fields {
		switch f.Ftype {
		case IntType:
			w += 4
		case StringType:
			w += StringLength + 4
		default:
			return 0, errors.New("cannot size a field of unknown type")
		}
	}
	if w <= 0 {
		return 0, errors.New("tuple descriptor has no sizeable fields")
	}
	return w, nil
}

// slotsPerPage computes N = floor((PageSize*8) / (W*8 + 1)), the number of
// slots a bitmap-headered page of PageSize bytes can hold for tuples of
// width w.
func slotsPerPage(w int) int {
	return (PageSize * 8) / (w*8 + 1)
}

func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// newHeapPage constructs a fresh, empty heap page.
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	w, err := bytesPerTuple(desc)
	if err != nil {
		return nil, err
	}
	n := slotsPerPage(w)
	if n <= 0 {
		return nil, fmt.Errorf("tuple of width %d does not fit in a %d byte page", w, PageSize)
	}
	p := &heapPage{
		pid:      PageID{pageNo: pageNo},
		desc:     desc,
		file:     f,
		numSlots: n,
		tuples:   make([]*Tuple, n),
	}
	if f != nil {
		p.pid.tableID = f.tableID
	}
	buf, err := p.toBuffer()
	if err != nil {
		return nil, err
	}
	p.beforeImage = append([]byte(nil), buf.Bytes()...)
	return p, nil
}

func (h *heapPage) getNumSlots() int {
	return h.numSlots
}

// numEmptySlots returns slots - popcount(header).
func (h *heapPage) numEmptySlots() int {
	used := 0
	for _, t := range h.tuples {
		if t != nil {
			used++
		}
	}
	return h.numSlots - used
}

// insertTuple stores t in the lowest-index empty slot, failing with
// PageFullError if none exists or IncompatibleTypesError on schema
// mismatch.
func (h *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	if !t.Desc.equals(h.desc) {
		return RecordID{}, newErr(IncompatibleTypesError, "tuple schema does not match page schema")
	}
	for slot, cur := range h.tuples {
		if cur != nil {
			continue
		}
		rid := RecordID{PID: h.pid, Slot: slot}
		stored := &Tuple{Desc: *h.desc, Fields: t.Fields, Rid: rid}
		h.tuples[slot] = stored
		t.Rid = rid
		return rid, nil
	}
	return RecordID{}, newErr(PageFullError, "no empty slot on page %d", h.pid.pageNo)
}

// deleteTuple clears the slot named by rid. Fails with TupleNotFoundError if
// the record id belongs to a different page, names a slot out of range, or
// names a slot that is already clear. Writes no bytes itself; toBuffer
// zero-fills the freed slot when the page is next serialized.
func (h *heapPage) deleteTuple(rid RecordID) error {
	if rid.PID != h.pid {
		return newErr(TupleNotFoundError, "record id %v is not on page %v", rid, h.pid)
	}
	if rid.Slot < 0 || rid.Slot >= len(h.tuples) {
		return newErr(TupleNotFoundError, "slot %d out of range", rid.Slot)
	}
	if h.tuples[rid.Slot] == nil {
		return newErr(TupleNotFoundError, "slot %d is already empty", rid.Slot)
	}
	h.tuples[rid.Slot] = nil
	return nil
}

func (h *heapPage) isDirty() (TransactionID, bool) {
	return h.dirtyTid, h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyTid = tid
	}
}

func (h *heapPage) getFile() DBFile {
	return h.file
}

// setBeforeImage rebinds the before-image to the page's current serialized
// bytes. Called by the buffer pool at commit, after the page has been
// flushed.
func (h *heapPage) setBeforeImage() {
	buf, err := h.toBuffer()
	if err != nil {
		return
	}
	h.beforeImage = append([]byte(nil), buf.Bytes()...)
}

func (h *heapPage) getBeforeImage() []byte {
	return h.beforeImage
}

// toBuffer serializes the page to exactly PageSize bytes: the bitmap
// header, then each slot's tuple bytes (zero-filled for empty slots), then
// zero padding to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	header := make([]byte, headerBytes(h.numSlots))
	for slot, t := range h.tuples {
		if t == nil {
			continue
		}
		header[slot/8] |= 1 << (slot % 8)
	}
	if _, err := buf.Write(header); err != nil {
		return nil, err
	}

	w, err := bytesPerTuple(h.desc)
	if err != nil {
		return nil, err
	}
	for _, t := range h.tuples {
		if t == nil {
			buf.Write(make([]byte, w))
			continue
		}
		if err := t.writeTo(buf); err != nil {
			return nil, err
		}
	}

	if buf.Len() < PageSize {
		buf.Write(make([]byte, PageSize-buf.Len()))
	}
	return buf, nil
}

// initFromBuffer parses a page's bitmap header and slot tuples from a
// PageSize-byte buffer, and rebinds the before-image to a copy of those
// bytes.
func (h *heapPage) initFromBuffer(raw []byte) error {
	if len(raw) != PageSize {
		return fmt.Errorf("expected %d bytes, got %d", PageSize, len(raw))
	}
	w, err := bytesPerTuple(h.desc)
	if err != nil {
		return err
	}
	h.numSlots = slotsPerPage(w)
	hdrLen := headerBytes(h.numSlots)
	header := raw[:hdrLen]
	body := bytes.NewReader(raw[hdrLen:])

	h.tuples = make([]*Tuple, h.numSlots)
	for slot := 0; slot < h.numSlots; slot++ {
		used := header[slot/8]&(1<<(slot%8)) != 0
		slotBytes := make([]byte, w)
		if _, err := body.Read(slotBytes); err != nil {
			return err
		}
		if !used {
			continue
		}
		tup, err := readTupleFrom(bytes.NewBuffer(slotBytes), h.desc)
		if err != nil {
			return err
		}
		tup.Rid = RecordID{PID: h.pid, Slot: slot}
		h.tuples[slot] = tup
	}
	h.beforeImage = append([]byte(nil), raw...)
	return nil
}

// tupleIter returns a function that yields used-slot tuples in ascending
// slot order; a snapshot of the header taken at the time tupleIter is
// called. Returns nil, nil once exhausted.
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	tuples := append([]*Tuple(nil), h.tuples...)
	slot := 0
	return func() (*Tuple, error) {
		for slot < len(tuples) {
			t := tuples[slot]
			slot++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}

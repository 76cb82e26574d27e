package kmerscan

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"golang.org/x/sys/unix"
)

// entrySize is the fixed record width of one hash-table slot, letting the
// table be read directly out of a byte slice with no per-entry allocation.
const entrySize = int(unsafe.Sizeof(Entry{}))

// Entry is one slot of the signature hash table. EncodedKmer >=
// maxEncoded() marks an empty slot (see emptySentinel). The struct is
// fixed-width and pointer-free so it can be cast directly onto mmap'd bytes.
type Entry struct {
	EncodedKmer uint64
	FuncWeight  float32
	OTUIndex    int32
	FuncIndex   int32
	AvgFromEnd  uint16
	_           uint16 // pad to a tidy, alignment-friendly 24 bytes
}

// headerSize is the byte length of the on-disk header, before the entry
// array begins: num_sigs, entry_size, version, each 8 bytes.
const headerSize = 24

// header is the small, manually (de)serialized preamble of a signature
// table image. Unlike Entry it is not mmap-cast: it is short-lived and
// parsed once at Load time, so plain encoding/binary is sufficient here.
type header struct {
	numSigs   uint64
	entrySize uint64
	version   int64
}

const currentVersion = 1

// SignatureTable is an open-addressed, linear-probe dictionary mapping
// encoded k-mers to signature metadata. It is read-only once built or
// loaded, and safe to share across any number of concurrent Sessions.
type SignatureTable struct {
	slotCount uint64
	loaded    uint64

	// backing is the raw byte image: an owned mmap region once loaded, or a
	// plain heap slice for a table under construction with NewTable.
	// tableStart points at backing[headerSize], the start of the Entry array.
	backing    []byte
	tableStart unsafe.Pointer
	mapped     bool
}

// slotAt returns a pointer to the i'th entry, 0 <= i < slotCount.
func (t *SignatureTable) slotAt(i uint64) *Entry {
	return (*Entry)(unsafe.Pointer(uintptr(t.tableStart) + uintptr(i)*uintptr(entrySize)))
}

// NewTable allocates an empty in-memory table with slotCount slots. Callers
// building a table from final.kmers use this, then Insert, then Persist.
func NewTable(slotCount uint64) *SignatureTable {
	backing := make([]byte, headerSize+int(slotCount)*entrySize)
	t := &SignatureTable{
		slotCount:  slotCount,
		backing:    backing,
		tableStart: unsafe.Pointer(&backing[headerSize]),
	}
	empty := emptySentinel()
	for i := uint64(0); i < slotCount; i++ {
		t.slotAt(i).EncodedKmer = empty
	}
	return t
}

// Insert installs a signature for encKmer in the first empty slot found by
// probing forward (step 1, wrapping) from encKmer mod slotCount. There is
// no duplicate check: a k-mer inserted twice occupies two slots, and Lookup
// returns the first-inserted entry. Callers must interleave CheckLoadFactor
// with their Inserts; a table allowed past half full loses the probe-length
// bound, and a completely full one has no slot for Insert to find at all.
func (t *SignatureTable) Insert(encKmer uint64, funcIndex, otuIndex int32, avgFromEnd uint16, funcWeight float32) {
	h := encKmer % t.slotCount
	for i := uint64(0); i < t.slotCount; i++ {
		slot := t.slotAt(h)
		if slot.EncodedKmer >= maxEncoded() {
			slot.EncodedKmer = encKmer
			slot.FuncIndex = funcIndex
			slot.OTUIndex = otuIndex
			slot.AvgFromEnd = avgFromEnd
			slot.FuncWeight = funcWeight
			t.loaded++
			return
		}
		h++
		if h >= t.slotCount {
			h = 0
		}
	}
	panic("kmerscan: signature table insert found no empty slot")
}

// HalfFullErr is returned by CheckLoadFactor when the table has reached
// half occupancy, the point past which the probe-length bound no longer
// holds.
type HalfFullErr struct {
	Loaded, SlotCount uint64
}

func (e *HalfFullErr) Error() string {
	return fmt.Sprintf("kmerscan: hash half-full (%d loaded of %d slots); rerun build with a larger -s", e.Loaded, e.SlotCount)
}

// CheckLoadFactor rejects a table that has been built to half full or
// beyond. Call it after every Insert, before Persist.
func (t *SignatureTable) CheckLoadFactor() error {
	if t.loaded*2 >= t.slotCount {
		return &HalfFullErr{Loaded: t.loaded, SlotCount: t.slotCount}
	}
	return nil
}

// Lookup returns the entry for encKmer and true, or a zero Entry and false
// if it is absent. A table kept below half occupancy always has an empty
// slot within slotCount/2+1 probes, so the probe loop is bounded there.
func (t *SignatureTable) Lookup(encKmer uint64) (Entry, bool) {
	h := encKmer % t.slotCount
	limit := t.slotCount/2 + 1
	for i := uint64(0); i < limit; i++ {
		slot := t.slotAt(h)
		if slot.EncodedKmer == encKmer {
			return *slot, true
		}
		if slot.EncodedKmer >= maxEncoded() {
			return Entry{}, false
		}
		h++
		if h >= t.slotCount {
			h = 0
		}
	}
	return Entry{}, false
}

// unsafeEntriesToBytes casts the Entry array rooted at start to a []byte
// of the same underlying memory: no copy, no encoding/binary traversal, so
// the in-memory struct layout (padding included) survives the round trip
// untouched.
func unsafeEntriesToBytes(start unsafe.Pointer, n uint64) []byte {
	return unsafe.Slice((*byte)(start), int(n)*entrySize)
}

// Persist writes the table to path as an mmap-able image: the small
// little-endian binary header followed by the raw, host-endian entry array. The destination
// goes through file.Create so a remote (e.g. s3://) path works the same as
// a local one; only the later mmap Load requires a local, fd-backed file
// (see LoadTable).
func (t *SignatureTable) Persist(ctx context.Context, path string) (err error) {
	w, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "kmerscan: creating signature table", path)
	}
	defer func() {
		if cerr := w.Close(ctx); err == nil {
			err = cerr
		}
	}()

	hdrBuf := make([]byte, headerSize)
	encodeHeader(hdrBuf, &header{numSigs: t.slotCount, entrySize: uint64(entrySize), version: currentVersion})

	out := w.Writer(ctx)
	if _, err = out.Write(hdrBuf); err != nil {
		return errors.E(err, "kmerscan: writing signature table header", path)
	}
	entries := unsafeEntriesToBytes(t.tableStart, t.slotCount)
	if _, err = out.Write(entries); err != nil {
		return errors.E(err, "kmerscan: writing signature table entries", path)
	}
	return nil
}

// LoadTable mmaps path read-only and returns a SignatureTable backed
// directly by the mapped pages, so that serving queries never copies the
// table into heap memory and repeated runs reuse the OS page cache. mmap
// needs a real local file descriptor, which the transport-transparent
// file.File abstraction does not expose for remote backends, so unlike
// every other file access in this package this one step uses the standard
// library's os.Open directly.
func LoadTable(path string) (*SignatureTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "kmerscan: opening signature table", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.E(err, "kmerscan: stat signature table", path)
	}
	size := info.Size()
	if size < int64(headerSize) {
		return nil, errors.E("kmerscan: signature table truncated", path)
	}

	backing, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.E(err, "kmerscan: mmap signature table", path)
	}

	var hdr header
	decodeHeader(backing[:headerSize], &hdr)
	if hdr.version != currentVersion {
		unix.Munmap(backing)
		return nil, errors.E(fmt.Sprintf("kmerscan: unsupported signature table version %d", hdr.version), path)
	}
	if hdr.entrySize != uint64(entrySize) {
		unix.Munmap(backing)
		return nil, errors.E(fmt.Sprintf("kmerscan: signature table entry_size %d does not match this build's %d", hdr.entrySize, entrySize), path)
	}
	if int64(headerSize)+int64(hdr.numSigs)*int64(entrySize) != size {
		unix.Munmap(backing)
		return nil, errors.E("kmerscan: signature table size does not match header", path)
	}

	// Prefetch hint only; the page cache warms the table on the first full
	// pass regardless of whether the kernel honors it.
	_ = unix.Madvise(backing, unix.MADV_WILLNEED)

	t := &SignatureTable{
		slotCount:  hdr.numSigs,
		backing:    backing,
		tableStart: unsafe.Pointer(&backing[headerSize]),
		mapped:     true,
	}
	return t, nil
}

// Close releases the table's mmap region, if any. It is a no-op for
// in-memory tables built with NewTable that were never Persist/reloaded.
func (t *SignatureTable) Close() error {
	if !t.mapped {
		return nil
	}
	t.mapped = false
	return unix.Munmap(t.backing)
}

// SlotCount and LoadedCount expose the table's sizing for build-summary
// reporting. LoadedCount counts Inserts into this table; it is 0 for a
// table reloaded with LoadTable.
func (t *SignatureTable) SlotCount() uint64   { return t.slotCount }
func (t *SignatureTable) LoadedCount() uint64 { return t.loaded }

func encodeHeader(buf []byte, h *header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.numSigs)
	binary.LittleEndian.PutUint64(buf[8:16], h.entrySize)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.version))
}

func decodeHeader(buf []byte, h *header) {
	h.numSigs = binary.LittleEndian.Uint64(buf[0:8])
	h.entrySize = binary.LittleEndian.Uint64(buf[8:16])
	h.version = int64(binary.LittleEndian.Uint64(buf[16:24]))
}

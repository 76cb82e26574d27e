package kmerscan

// OIBufSz is the OTU tally's fixed capacity.
const OIBufSz = 5

// OTUCount is one ranked (otu_index, count) entry.
type OTUCount struct {
	OTUIndex int32
	Count    int64
}

// OTUTally is a bounded, ranked OTU evidence list: at most OIBufSz
// entries, kept in non-increasing Count order by bubbling a
// just-incremented entry toward the front.
type OTUTally struct {
	entries [OIBufSz]OTUCount
	n       int
}

// Add records one accepted OTU-index observation: linear-scan for a match,
// else append if there's room, else overwrite the last slot. A newcomer
// can therefore evict the current lowest-ranked entry; the tally is an
// approximation, not an exact top-5.
func (t *OTUTally) Add(oi int32) {
	idx := -1
	for i := 0; i < t.n; i++ {
		if t.entries[i].OTUIndex == oi {
			idx = i
			break
		}
	}
	switch {
	case idx >= 0:
		t.entries[idx].Count++
	case t.n < OIBufSz:
		idx = t.n
		t.entries[idx] = OTUCount{OTUIndex: oi, Count: 1}
		t.n++
	default:
		idx = OIBufSz - 1
		t.entries[idx] = OTUCount{OTUIndex: oi, Count: 1}
	}
	t.bubble(idx)
}

// bubble moves the entry at idx toward the front of the list while its
// count is >= its predecessor's. Ties move frontward.
func (t *OTUTally) bubble(idx int) {
	for idx > 0 && t.entries[idx].Count >= t.entries[idx-1].Count {
		t.entries[idx], t.entries[idx-1] = t.entries[idx-1], t.entries[idx]
		idx--
	}
}

// Reset clears the tally for the next request. Counts never carry across
// sequences.
func (t *OTUTally) Reset() {
	t.n = 0
}

// Entries returns the tally's current ranked entries, front (highest
// count) first.
func (t *OTUTally) Entries() []OTUCount {
	return t.entries[:t.n]
}

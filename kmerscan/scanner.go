package kmerscan

// RawHit is a transient per-frame lookup hit. Hits are produced in
// From0InProt ascending order by construction.
type RawHit struct {
	From0InProt uint32
	AvgOffEnd   uint16
	FuncIndex   int32
	OTUIndex    int32
	FuncWeight  float32
}

// ScanProtein walks residues (the residue-index form of one translated
// frame) with a rolling base-20 key, looking up every clean K-window in
// table and invoking emit for each hit. Windows straddling an ambiguous
// residue are skipped and the encoding reseeded from scratch beyond them.
func ScanProtein(residues []uint8, table *SignatureTable, emit func(RawHit)) {
	n := len(residues)
	if n < K {
		return
	}
	p := advancePastAmbiguous(residues, 0)
	if p > n-K {
		return
	}
	enc := encodeWindow(residues[p : p+K])
	for {
		if entry, ok := table.Lookup(enc); ok {
			emit(RawHit{
				From0InProt: uint32(p),
				AvgOffEnd:   entry.AvgFromEnd,
				FuncIndex:   entry.FuncIndex,
				OTUIndex:    entry.OTUIndex,
				FuncWeight:  entry.FuncWeight,
			})
		}
		next := p + 1
		if next > n-K {
			return
		}
		lastResidue := residues[next+K-1]
		if lastResidue <= 19 {
			enc = rollEncode(enc, lastResidue)
			p = next
		} else {
			p = advancePastAmbiguous(residues, next)
			if p > n-K {
				return
			}
			enc = encodeWindow(residues[p : p+K])
		}
	}
}

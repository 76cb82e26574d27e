package kmerscan

import "github.com/grailbio/base/log"

// MaxHitsPerSeq bounds the grouper's hit buffer. Once the buffer holds
// MaxHitsPerSeq-2 hits, further hits are dropped (logged only at debug>=1).
const MaxHitsPerSeq = 40000

// GrouperParams holds the per-session, per-request-overridable grouping
// thresholds.
type GrouperParams struct {
	MinHits         int
	MinWeightedHits float64
	MaxGap          uint32
	OrderConstraint bool
}

// DefaultGrouperParams returns the stock thresholds: at least 5 hits, no
// weight floor, a 200-residue gap limit, order constraint off.
func DefaultGrouperParams() GrouperParams {
	return GrouperParams{
		MinHits:         5,
		MinWeightedHits: 0,
		MaxGap:          200,
		OrderConstraint: false,
	}
}

// CallRecord is one emitted CALL: a contiguous hit cluster implicating
// FuncIndex over the protein span [Start, End].
type CallRecord struct {
	Start, End   uint32
	FuncCount    int
	FuncIndex    int32
	WeightedHits float64
}

// Grouper is the per-frame hit-grouping state machine. It carries no state
// across frames: the two-hit tail produced by the emission post-step only
// seeds the next group within the same frame, and FrameEnd clears the
// buffer, tail included.
type Grouper struct {
	params GrouperParams
	debug  int

	hits      []RawHit
	currentFI int32

	onCall func(CallRecord)
	onOTU  func(otuIndex int32)
}

// NewGrouper constructs a Grouper that reports CALLs via onCall and feeds
// accepted hits' OTU indices to onOTU (wired by Session to the OTUTally).
func NewGrouper(params GrouperParams, debug int, onCall func(CallRecord), onOTU func(otuIndex int32)) *Grouper {
	return &Grouper{params: params, debug: debug, onCall: onCall, onOTU: onOTU, hits: make([]RawHit, 0, 64)}
}

// Reset clears the grouper's buffer for a new frame.
func (g *Grouper) Reset() {
	g.hits = g.hits[:0]
}

// Ingest feeds one arriving raw hit through the state machine, in arrival
// order: flush on an over-gap hit, seed currentFI on an empty buffer,
// append if accepted, and emit once two consecutive hits of a new function
// show up.
func (g *Grouper) Ingest(h RawHit) {
	if n := len(g.hits); n > 0 {
		last := g.hits[n-1]
		if h.From0InProt-last.From0InProt > g.params.MaxGap {
			if n >= g.params.MinHits {
				g.emit()
			} else {
				g.hits = g.hits[:0]
			}
		}
	}

	if len(g.hits) == 0 {
		g.currentFI = h.FuncIndex
	}

	if !g.accepts(h) {
		return
	}

	if len(g.hits) >= MaxHitsPerSeq-2 {
		if g.debug >= 1 {
			log.Printf("kmerscan: grouper overflow, dropping hit at %d", h.From0InProt)
		}
		return
	}
	g.hits = append(g.hits, h)

	n := len(g.hits)
	if n > 1 && g.currentFI != h.FuncIndex && g.hits[n-2].FuncIndex == g.hits[n-1].FuncIndex {
		g.emit()
	}
}

// accepts decides whether an arriving hit joins the buffer. Without the
// order constraint every hit is taken; with it, a hit must share the last
// hit's function and its positional delta must match the delta of the two
// hits' distance-from-end annotations to within 20 residues, so that both
// plausibly come from the same parent protein.
func (g *Grouper) accepts(h RawHit) bool {
	if !g.params.OrderConstraint || len(g.hits) == 0 {
		return true
	}
	last := g.hits[len(g.hits)-1]
	if h.FuncIndex != last.FuncIndex {
		return false
	}
	posDelta := int64(h.From0InProt) - int64(last.From0InProt)
	offDelta := int64(last.AvgOffEnd) - int64(h.AvgOffEnd)
	diff := posDelta - offDelta
	if diff < 0 {
		diff = -diff
	}
	return diff <= 20
}

// FrameEnd flushes a buffer that has accumulated enough hits, then clears
// it for the next frame.
func (g *Grouper) FrameEnd() {
	if len(g.hits) >= g.params.MinHits {
		g.emit()
	}
	g.hits = g.hits[:0]
}

// emit counts and weighs the buffered hits matching currentFI, reports a
// CALL if they clear both thresholds, and feeds the contributing hits'
// OTU indices onward. Whether or not a CALL goes out, a trailing pair of
// same-function hits that triggered a function transition is carried back
// as the seed of the next group rather than lost.
func (g *Grouper) emit() {
	fICount := 0
	var weighted float64
	lastHit := -1
	for i, h := range g.hits {
		if h.FuncIndex == g.currentFI {
			fICount++
			weighted += float64(h.FuncWeight)
			lastHit = i
		}
	}

	if fICount >= g.params.MinHits && weighted >= g.params.MinWeightedHits && lastHit >= 0 {
		g.onCall(CallRecord{
			Start:        g.hits[0].From0InProt,
			End:          g.hits[lastHit].From0InProt + K - 1,
			FuncCount:    fICount,
			FuncIndex:    g.currentFI,
			WeightedHits: weighted,
		})
		for i := 0; i <= lastHit; i++ {
			if g.hits[i].FuncIndex == g.currentFI {
				g.onOTU(g.hits[i].OTUIndex)
			}
		}
	}

	n := len(g.hits)
	if n >= 2 && g.hits[n-2].FuncIndex != g.currentFI && g.hits[n-2].FuncIndex == g.hits[n-1].FuncIndex {
		tail0, tail1 := g.hits[n-2], g.hits[n-1]
		g.hits = g.hits[:0]
		g.hits = append(g.hits, tail0, tail1)
		g.currentFI = tail1.FuncIndex
		return
	}
	g.hits = g.hits[:0]
}

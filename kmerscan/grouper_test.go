package kmerscan

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func hit(pos uint32, avgOffEnd uint16, fI int32, weight float32, oI int32) RawHit {
	return RawHit{From0InProt: pos, AvgOffEnd: avgOffEnd, FuncIndex: fI, FuncWeight: weight, OTUIndex: oI}
}

func runGrouper(params GrouperParams, hits []RawHit) ([]CallRecord, []int32) {
	var calls []CallRecord
	var otus []int32
	g := NewGrouper(params, 0, func(c CallRecord) { calls = append(calls, c) }, func(oi int32) { otus = append(otus, oi) })
	for _, h := range hits {
		g.Ingest(h)
	}
	g.FrameEnd()
	return calls, otus
}

func TestGrouperSingleFunctionCall(t *testing.T) {
	// Two hits of the same function 8 apart yield one CALL spanning
	// both windows; count equals the number of buffered hits contributing.
	params := DefaultGrouperParams()
	params.MinHits = 1
	calls, otus := runGrouper(params, []RawHit{
		hit(0, 12, 7, 1.0, 3),
		hit(8, 12, 7, 1.0, 3),
	})
	expect.EQ(t, len(calls), 1)
	expect.EQ(t, calls[0].Start, uint32(0))
	expect.EQ(t, calls[0].End, uint32(15)) // 8 + K - 1 = 8 + 7
	expect.EQ(t, calls[0].FuncCount, 2)
	expect.EQ(t, calls[0].FuncIndex, int32(7))
	expect.EQ(t, calls[0].WeightedHits, 2.0)
	expect.EQ(t, otus, []int32{3, 3})
}

func TestGrouperGapSplitsCalls(t *testing.T) {
	// A gap exceeding max_gap flushes the buffer, producing two
	// independent single-hit CALLs rather than one.
	params := DefaultGrouperParams()
	params.MinHits = 1
	params.MaxGap = 200
	calls, _ := runGrouper(params, []RawHit{
		hit(0, 12, 7, 1.0, 3),
		hit(209, 12, 7, 1.0, 3), // gap of 209 > 200
	})
	expect.EQ(t, len(calls), 2)
	expect.EQ(t, calls[0].Start, uint32(0))
	expect.EQ(t, calls[0].End, uint32(7))
	expect.EQ(t, calls[1].Start, uint32(209))
	expect.EQ(t, calls[1].End, uint32(216))
}

func TestGrouperOrderConstraint(t *testing.T) {
	// order_constraint accepts a hit whose positional/offset deltas are
	// coherent within 20, and rejects one that isn't.
	params := DefaultGrouperParams()
	params.MinHits = 2
	params.OrderConstraint = true

	// pos delta 1, avg_off delta 12-30=-18, |1-(-18)|=19 <= 20: accepted.
	calls, _ := runGrouper(params, []RawHit{
		hit(0, 12, 7, 1.0, 3),
		hit(1, 30, 7, 1.0, 3),
	})
	expect.EQ(t, len(calls), 1)
	expect.EQ(t, calls[0].FuncCount, 2)

	// avg_off delta 12-40=-28, |1-(-28)|=29 > 20: rejected, no CALL.
	calls, _ = runGrouper(params, []RawHit{
		hit(0, 12, 7, 1.0, 3),
		hit(1, 40, 7, 1.0, 3),
	})
	expect.EQ(t, len(calls), 0)
}

func TestGrouperWeightedThreshold(t *testing.T) {
	// Three hits of weight 0.3 sum to 0.9: below a 1.0 threshold (no
	// CALL) but above a 0.5 threshold (CALL emitted).
	params := DefaultGrouperParams()
	params.MinHits = 1
	params.MinWeightedHits = 1.0
	calls, _ := runGrouper(params, []RawHit{
		hit(0, 12, 7, 0.3, 3),
		hit(8, 12, 7, 0.3, 3),
		hit(16, 12, 7, 0.3, 3),
	})
	expect.EQ(t, len(calls), 0)

	params.MinWeightedHits = 0.5
	calls, _ = runGrouper(params, []RawHit{
		hit(0, 12, 7, 0.3, 3),
		hit(8, 12, 7, 0.3, 3),
		hit(16, 12, 7, 0.3, 3),
	})
	expect.EQ(t, len(calls), 1)
	expect.EQ(t, calls[0].FuncCount, 3)
}

func TestGrouperFunctionTransitionCarriesTail(t *testing.T) {
	// Two hits of function A, then two hits of function B: the transition
	// flushes A's CALL and carries B's two hits as the seed of the next
	// group rather than losing them.
	params := DefaultGrouperParams()
	params.MinHits = 2
	calls, _ := runGrouper(params, []RawHit{
		hit(0, 12, 1, 1.0, 10),
		hit(8, 12, 1, 1.0, 10),
		hit(16, 12, 2, 1.0, 20),
		hit(24, 12, 2, 1.0, 20),
	})
	expect.EQ(t, len(calls), 2)
	expect.EQ(t, calls[0].FuncIndex, int32(1))
	expect.EQ(t, calls[0].FuncCount, 2)
	expect.EQ(t, calls[1].FuncIndex, int32(2))
	expect.EQ(t, calls[1].FuncCount, 2)
	expect.EQ(t, calls[1].Start, uint32(16))
}

func TestGrouperBelowMinHitsDiscarded(t *testing.T) {
	params := DefaultGrouperParams()
	params.MinHits = 5
	calls, otus := runGrouper(params, []RawHit{
		hit(0, 12, 1, 1.0, 10),
		hit(8, 12, 1, 1.0, 10),
	})
	expect.EQ(t, len(calls), 0)
	expect.EQ(t, len(otus), 0)
}

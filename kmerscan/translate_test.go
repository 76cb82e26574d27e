package kmerscan

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestReverseComplement(t *testing.T) {
	expect.EQ(t, string(ReverseComplement([]byte("ATGC"))), "GCAT")
	expect.EQ(t, string(ReverseComplement([]byte("ACGTN"))), "NACGT")
}

func TestTranslateFrameStandardCode(t *testing.T) {
	frames := SixFrames([]byte("ATGAAAACGGCGTACATCGCGAAA"), StrandBoth)
	expect.EQ(t, len(frames), 6)
	expect.EQ(t, string(frames[0].Translation), "MKTAYIAK")
	expect.EQ(t, frames[0].Offset, 0)
	expect.EQ(t, frames[0].Reverse, false)
}

func TestTranslateFrameDropsPartialCodon(t *testing.T) {
	// 10 bases at offset 0 yields 3 full codons (9 bases), the trailing base
	// dropped; offset 1 leaves 9 bases = 3 codons; offset 2 leaves 8 bases =
	// 2 codons, the trailing 2 bases dropped.
	seq := []byte("AAACCCGGGT")
	f := translateFrame(seq, 0)
	expect.EQ(t, len(f), 3)
	f = translateFrame(seq, 1)
	expect.EQ(t, len(f), 3)
	f = translateFrame(seq, 2)
	expect.EQ(t, len(f), 2)
}

func TestTranslateFrameAmbiguousCodon(t *testing.T) {
	out := translateFrame([]byte("NNNAAA"), 0)
	expect.EQ(t, len(out), 2)
	expect.EQ(t, asciiToResidue[out[0]], uint8(Ambiguous))
	expect.EQ(t, out[1], byte('K'))
}

func TestSixFramesStrandFilter(t *testing.T) {
	seq := []byte("ATGAAAACGGCGTACATCGCGAAA")

	fwd := SixFrames(seq, StrandForwardOnly)
	expect.EQ(t, len(fwd), 3)
	for _, f := range fwd {
		expect.False(t, f.Reverse)
	}

	rev := SixFrames(seq, StrandReverseOnly)
	expect.EQ(t, len(rev), 3)
	for _, f := range rev {
		expect.True(t, f.Reverse)
	}
}

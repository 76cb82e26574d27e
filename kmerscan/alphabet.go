package kmerscan

// K is the signature k-mer length. It is baked into the rolling-encoder
// arithmetic and the ambiguity skip schedule below, so changing it requires
// rebuilding both the table and this package.
const K = 8

// AlphaSize is the number of unambiguous amino-acid residues.
const AlphaSize = 20

// Ambiguous is the sentinel residue index for a character outside the
// 20-letter alphabet. DNA bases outside ACGT/U use baseAmbiguous instead.
const Ambiguous = 20

// aminoAcids is the fixed, ordered amino-acid alphabet. Its index in this
// string is the residue's encoded value.
const aminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// pow20 holds 20^0 .. 20^K, used by the base-20 encoder and the empty-slot
// sentinel.
var pow20 [K + 1]uint64

func init() {
	pow20[0] = 1
	for i := 1; i <= K; i++ {
		pow20[i] = pow20[i-1] * 20
	}
}

// maxEncoded is 20^K: one past the largest valid encoded k-mer, and the
// threshold at or above which a signature-table slot is considered empty.
func maxEncoded() uint64 { return pow20[K] }

// emptySentinel is the value a freshly-allocated signature slot is
// initialized to, per the table format (encoded_kmer = 20^K + 1).
func emptySentinel() uint64 { return pow20[K] + 1 }

// asciiToResidue maps an amino-acid letter (any case-sensitive ASCII byte,
// including punctuation and whitespace) to its residue index 0..19, or to
// Ambiguous for anything not in the 20-letter alphabet.
var asciiToResidue [256]uint8

func init() {
	for i := range asciiToResidue {
		asciiToResidue[i] = Ambiguous
	}
	for i := 0; i < AlphaSize; i++ {
		asciiToResidue[aminoAcids[i]] = uint8(i)
	}
}

// EncodeResidues maps a raw protein character string to residue indices
// (0..19, or Ambiguous). The slice is reused by callers that scan many
// frames; it never allocates beyond len(seq).
func EncodeResidues(seq []byte, dst []uint8) []uint8 {
	if cap(dst) < len(seq) {
		dst = make([]uint8, len(seq))
	}
	dst = dst[:len(seq)]
	for i, ch := range seq {
		dst[i] = asciiToResidue[ch]
	}
	return dst
}

// encodeWindow computes the base-20 encoding of a clean (no Ambiguous
// residue) K-window. An out-of-range residue here is a programmer error,
// not a data error: advancePastAmbiguous keeps the scanner off such
// windows.
func encodeWindow(w []uint8) uint64 {
	var enc uint64
	for i := 0; i < K; i++ {
		v := w[i]
		if v > 19 {
			panic("kmerscan: encodeWindow called on a window containing an ambiguous residue")
		}
		enc = enc*20 + uint64(v)
	}
	return enc
}

// rollEncode advances a clean encoding by one residue: the window
// [enc's first residue dropped, next appended]. next must be in [0,19].
func rollEncode(enc uint64, next uint8) uint64 {
	return (enc%pow20[K-1])*20 + uint64(next)
}

// advancePastAmbiguous returns the smallest p' >= p such that the K-residue
// window starting at p' contains no Ambiguous residue, or a value > n-K if
// no such window exists before the end of the protein. It scans the
// rightmost residue of each candidate window first: if the ambiguous
// residue found that way sits at offset j from the window start, no window
// starting before p+j+1 can exclude it, so jump = j+1 is the largest jump
// guaranteed not to skip a clean window.
func advancePastAmbiguous(residues []uint8, p int) int {
	n := len(residues)
	for p <= n-K {
		j := -1
		for i := K - 1; i >= 0; i-- {
			if residues[p+i] == Ambiguous {
				j = i
				break
			}
		}
		if j == -1 {
			return p
		}
		p += j + 1
	}
	return n - K + 1
}

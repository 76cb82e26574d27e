package kmerscan

// asciiToBase maps a DNA letter to a 2-bit base index (A=0,C=1,G=2,T/U=3),
// or baseAmbiguous for anything else.
var asciiToBase [256]uint8

const baseAmbiguous = 4

func init() {
	for i := range asciiToBase {
		asciiToBase[i] = baseAmbiguous
	}
	asciiToBase['A'], asciiToBase['a'] = 0, 0
	asciiToBase['C'], asciiToBase['c'] = 1, 1
	asciiToBase['G'], asciiToBase['g'] = 2, 2
	asciiToBase['T'], asciiToBase['t'] = 3, 3
	asciiToBase['U'], asciiToBase['u'] = 3, 3
}

// complementBase is the IUPAC complement table, case-preserving and
// identity for anything it doesn't recognize.
var complementBase [256]byte

func init() {
	for i := range complementBase {
		complementBase[i] = byte(i)
	}
	pairs := map[byte]byte{
		'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A', 'U': 'A',
		'M': 'K', 'K': 'M', 'R': 'Y', 'Y': 'R',
		'W': 'W', 'S': 'S', 'B': 'V', 'V': 'B',
		'D': 'H', 'H': 'D', 'N': 'N',
	}
	for a, b := range pairs {
		complementBase[a] = b
		complementBase[a+32] = b + 32 // lowercase
	}
}

// ReverseComplement returns the reverse complement of a DNA sequence.
func ReverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	n := len(seq)
	for i, ch := range seq {
		out[n-1-i] = complementBase[ch]
	}
	return out
}

// codonTable is the standard genetic code, indexed by
// base(pos0)*16 + base(pos1)*4 + base(pos2), each base in {A,C,G,T}=0..3.
// '*' marks a stop codon; downstream, asciiToResidue folds it into the
// ambiguous residue like any other non-alphabet character.
var codonTable = [64]byte{
	// base0=A (0..15: base1=A,C,G,T)
	'K', 'N', 'K', 'N', // AAA AAC AAG AAT
	'T', 'T', 'T', 'T', // ACA ACC ACG ACT
	'R', 'S', 'R', 'S', // AGA AGC AGG AGT
	'I', 'I', 'M', 'I', // ATA ATC ATG ATT
	// base0=C
	'Q', 'H', 'Q', 'H', // CAA CAC CAG CAT
	'P', 'P', 'P', 'P', // CCA CCC CCG CCT
	'R', 'R', 'R', 'R', // CGA CGC CGG CGT
	'L', 'L', 'L', 'L', // CTA CTC CTG CTT
	// base0=G
	'E', 'D', 'E', 'D', // GAA GAC GAG GAT
	'A', 'A', 'A', 'A', // GCA GCC GCG GCT
	'G', 'G', 'G', 'G', // GGA GGC GGG GGT
	'V', 'V', 'V', 'V', // GTA GTC GTG GTT
	// base0=T
	'*', 'Y', '*', 'Y', // TAA TAC TAG TAT
	'S', 'S', 'S', 'S', // TCA TCC TCG TCT
	'*', 'C', 'W', 'C', // TGA TGC TGG TGT
	'L', 'F', 'L', 'F', // TTA TTC TTG TTT
}

// translateFrame translates seq[offset:] in steps of 3, producing one
// amino-acid letter (or '*'/ambiguous marker) per codon. A trailing partial
// codon is dropped.
func translateFrame(seq []byte, offset int) []byte {
	n := (len(seq) - offset) / 3
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		p := offset + i*3
		b0 := asciiToBase[seq[p]]
		b1 := asciiToBase[seq[p+1]]
		b2 := asciiToBase[seq[p+2]]
		if b0 > 3 || b1 > 3 || b2 > 3 {
			out[i] = 'x' // ambiguous codon; asciiToResidue maps this to Ambiguous
			continue
		}
		out[i] = codonTable[int(b0)*16+int(b1)*4+int(b2)]
	}
	return out
}

// Frame identifies one of the six reading frames of a DNA contig.
type Frame struct {
	// Offset is 0, 1 or 2: the nucleotide offset this frame starts at, into
	// the strand being read (the reverse complement for reverse frames).
	Offset int
	// Reverse is true if this frame reads the reverse complement strand.
	Reverse bool
	// Translation is the resulting amino-acid sequence.
	Translation []byte
}

// SixFrames translates a DNA sequence in all six reading frames, honoring
// filter (both/forward/reverse). Frame offsets are always relative to the
// strand being read: forward frames offset into seq, reverse frames into
// its reverse complement.
func SixFrames(seq []byte, filter StrandFilter) []Frame {
	var frames []Frame
	if filter != StrandReverseOnly {
		for offset := 0; offset < 3; offset++ {
			frames = append(frames, Frame{
				Offset:      offset,
				Reverse:     false,
				Translation: translateFrame(seq, offset),
			})
		}
	}
	if filter != StrandForwardOnly {
		rc := ReverseComplement(seq)
		for offset := 0; offset < 3; offset++ {
			frames = append(frames, Frame{
				Offset:      offset,
				Reverse:     true,
				Translation: translateFrame(rc, offset),
			})
		}
	}
	return frames
}

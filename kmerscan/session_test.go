package kmerscan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func testDictionary(t *testing.T, kmers []string, fI, oI []int32, avgFromEnd []uint16, weight []float32, funcNames, otuNames []string) *Dictionary {
	t.Helper()
	table := NewTable(1024)
	for i, k := range kmers {
		enc := encodeWindow(EncodeResidues([]byte(k), nil))
		table.Insert(enc, fI[i], oI[i], avgFromEnd[i], weight[i])
	}
	return &Dictionary{
		Table:     table,
		Functions: &NameIndex{names: funcNames},
		OTUs:      &NameIndex{names: otuNames},
	}
}

func runSession(t *testing.T, dict *Dictionary, opts Opts, input string) string {
	t.Helper()
	var out bytes.Buffer
	w := NewRecordWriter(&out, opts.HitsOnly)
	sess := NewSession(dict, opts)
	reqScanner := NewRequestScanner(strings.NewReader(input))
	var req Request
	for reqScanner.Scan(&req) {
		if req.Flush {
			if err := w.FlushMarker(); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := sess.HandleRequest(w, req); err != nil {
			t.Fatal(err)
		}
	}
	if err := reqScanner.Err(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func TestSessionAAPassThroughSingleFunction(t *testing.T) {
	dict := testDictionary(t,
		[]string{"MKTAYIAK"},
		[]int32{7}, []int32{3}, []uint16{12}, []float32{1.0},
		[]string{"", "", "", "", "", "", "", "func7"},
		[]string{"", "", "", "otu3"},
	)
	opts := DefaultOpts
	opts.AA = true
	opts.MinHits = 1

	got := runSession(t, dict, opts, ">seq1\nMKTAYIAKMKTAYIAK\n>FLUSH\n")
	want := "PROTEIN-ID\tseq1\t16\n" +
		"CALL\t0\t15\t2\t7\tfunc7\t2.000000\n" +
		"OTU-COUNTS\tseq1[16]\t2-3\n" +
		"//\n"
	expect.EQ(t, got, want)
}

func TestSessionDebugEmitsHitLines(t *testing.T) {
	dict := testDictionary(t,
		[]string{"MKTAYIAK"},
		[]int32{7}, []int32{3}, []uint16{12}, []float32{1.0},
		[]string{"", "", "", "", "", "", "", "func7"},
		[]string{"", "", "", "otu3"},
	)
	opts := DefaultOpts
	opts.AA = true
	opts.MinHits = 1
	opts.Debug = 1

	got := runSession(t, dict, opts, ">seq1\nMKTAYIAKMKTAYIAK\n>FLUSH\n")
	if !strings.Contains(got, "HIT\t0\t") {
		t.Fatalf("expected a HIT line at position 0, got:\n%s", got)
	}
	if !strings.Contains(got, "HIT\t8\t") {
		t.Fatalf("expected a HIT line at position 8, got:\n%s", got)
	}
}

func TestSessionDNASixFrame(t *testing.T) {
	// ATGAAAACGGCGTACATCGCGAAA translates to MKTAYIAK on the +0 frame.
	// Expect processing + six TRANSLATION lines + exactly one CALL (on +0)
	// + one OTU-COUNTS.
	dict := testDictionary(t,
		[]string{"MKTAYIAK"},
		[]int32{7}, []int32{3}, []uint16{12}, []float32{1.0},
		[]string{"", "", "", "", "", "", "", "func7"},
		[]string{"", "", "", "otu3"},
	)
	opts := DefaultOpts
	opts.MinHits = 1

	got := runSession(t, dict, opts, ">contig1\nATGAAAACGGCGTACATCGCGAAA\n>FLUSH\n")
	if !strings.HasPrefix(got, "processing contig1[24]\n") {
		t.Fatalf("expected a processing line, got:\n%s", got)
	}
	expect.EQ(t, strings.Count(got, "TRANSLATION\t"), 6)
	expect.EQ(t, strings.Count(got, "CALL\t"), 1)
	if !strings.Contains(got, "TRANSLATION\tcontig1\t24\t+\t0\n") {
		t.Fatalf("expected a +0 TRANSLATION line, got:\n%s", got)
	}
	expect.EQ(t, strings.Count(got, "OTU-COUNTS\t"), 1)
}

func TestSessionAmbiguousRunSplitsCalls(t *testing.T) {
	// A 201-residue 'X' run between two matching windows forces the
	// scanner past every straddling window and puts the second hit beyond
	// max_gap, so two single-hit CALLs come out, not one.
	dict := testDictionary(t,
		[]string{"MKTAYIAK"},
		[]int32{7}, []int32{3}, []uint16{12}, []float32{1.0},
		[]string{"", "", "", "", "", "", "", "func7"},
		[]string{"", "", "", "otu3"},
	)
	opts := DefaultOpts
	opts.AA = true
	opts.MinHits = 1
	opts.MaxGap = 200

	seq := "MKTAYIAK" + strings.Repeat("X", 201) + "MKTAYIAK"
	got := runSession(t, dict, opts, ">seq1\n"+seq+"\n>FLUSH\n")
	expect.EQ(t, strings.Count(got, "CALL\t"), 2)
	if !strings.Contains(got, "CALL\t0\t7\t1\t7\tfunc7\t1.000000\n") {
		t.Fatalf("expected a CALL at 0-7, got:\n%s", got)
	}
	if !strings.Contains(got, "CALL\t209\t216\t1\t7\tfunc7\t1.000000\n") {
		t.Fatalf("expected a CALL at 209-216, got:\n%s", got)
	}
}

func TestSessionRepeatedRequestIsIdempotent(t *testing.T) {
	// The same request processed twice in the same session yields
	// byte-identical output.
	dict := testDictionary(t,
		[]string{"MKTAYIAK"},
		[]int32{7}, []int32{3}, []uint16{12}, []float32{1.0},
		[]string{"", "", "", "", "", "", "", "func7"},
		[]string{"", "", "", "otu3"},
	)
	opts := DefaultOpts
	opts.AA = true
	opts.MinHits = 1

	input := ">seq1\nMKTAYIAKMKTAYIAK\n>FLUSH\n"
	first := runSession(t, dict, opts, input)
	second := runSession(t, dict, opts, input+input)
	expect.EQ(t, second, first+first)
}

func TestSessionFlushIsolatesOTUTally(t *testing.T) {
	// Two back-to-back requests, each ending in `//`, with no OTU
	// leakage between them.
	dict := testDictionary(t,
		[]string{"MKTAYIAK"},
		[]int32{7}, []int32{3}, []uint16{12}, []float32{1.0},
		[]string{"", "", "", "", "", "", "", "func7"},
		[]string{"", "", "", "otu3"},
	)
	opts := DefaultOpts
	opts.AA = true
	opts.MinHits = 1

	got := runSession(t, dict, opts, ">s1\nMKTAYIAK\n>FLUSH\n>s2\nMKTAYIAK\n>FLUSH\n")
	expect.EQ(t, strings.Count(got, "//\n"), 2)
	expect.EQ(t, strings.Count(got, "OTU-COUNTS\ts1[8]\t1-3\n"), 1)
	expect.EQ(t, strings.Count(got, "OTU-COUNTS\ts2[8]\t1-3\n"), 1)
}

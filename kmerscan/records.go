package kmerscan

import (
	"fmt"
	"io"

	"github.com/grailbio/base/tsv"
)

// RecordWriter emits the annotator's tab-delimited output records: one
// WriteString/WriteInt64 call per column, EndLine to terminate the row.
// When HitsOnly is set, every method except Hit, FlushMarker, Err, and
// Flush is a no-op, so only HIT lines, `//` batch markers and ERR lines
// reach the client.
type RecordWriter struct {
	w        *tsv.Writer
	HitsOnly bool
}

// NewRecordWriter wraps out for record emission.
func NewRecordWriter(out io.Writer, hitsOnly bool) *RecordWriter {
	return &RecordWriter{w: tsv.NewWriter(out), HitsOnly: hitsOnly}
}

// Flush flushes any buffered bytes to the underlying writer.
func (r *RecordWriter) Flush() error {
	return r.w.Flush()
}

// Processing emits `processing ID[L]`, the DNA-path per-contig header.
func (r *RecordWriter) Processing(id string, length int) error {
	if r.HitsOnly {
		return nil
	}
	r.w.WriteString(fmt.Sprintf("processing %s[%d]", id, length))
	return r.w.EndLine()
}

// ProteinID emits `PROTEIN-ID\tID\tL`, the AA-path per-contig header.
func (r *RecordWriter) ProteinID(id string, length int) error {
	if r.HitsOnly {
		return nil
	}
	r.w.WriteString("PROTEIN-ID")
	r.w.WriteString(id)
	r.w.WriteInt64(int64(length))
	return r.w.EndLine()
}

// Translation emits `TRANSLATION\tID\tL\tstrand\tframe`, once per frame on
// the DNA path.
func (r *RecordWriter) Translation(id string, length int, reverse bool, offset int) error {
	if r.HitsOnly {
		return nil
	}
	strand := "+"
	if reverse {
		strand = "-"
	}
	r.w.WriteString("TRANSLATION")
	r.w.WriteString(id)
	r.w.WriteInt64(int64(length))
	r.w.WriteString(strand)
	r.w.WriteInt64(int64(offset))
	return r.w.EndLine()
}

// Hit emits `HIT\tpos\tenc\tavg_off_end\tfI\twt\toI`, gated on debug>=1 by
// the caller (Session), not by RecordWriter itself.
func (r *RecordWriter) Hit(pos uint32, enc uint64, avgOffEnd uint16, funcIndex int32, weight float32, otuIndex int32) error {
	r.w.WriteString("HIT")
	r.w.WriteInt64(int64(pos))
	r.w.WriteString(fmt.Sprintf("%d", enc))
	r.w.WriteInt64(int64(avgOffEnd))
	r.w.WriteInt64(int64(funcIndex))
	r.w.WriteString(fmt.Sprintf("%.3f", weight))
	r.w.WriteInt64(int64(otuIndex))
	return r.w.EndLine()
}

// Call emits `CALL\tstart\tend\tfI_count\tfI\tfunction_name\tweighted_hits`.
func (r *RecordWriter) Call(c CallRecord, functionName string) error {
	if r.HitsOnly {
		return nil
	}
	r.w.WriteString("CALL")
	r.w.WriteInt64(int64(c.Start))
	r.w.WriteInt64(int64(c.End))
	r.w.WriteInt64(int64(c.FuncCount))
	r.w.WriteInt64(int64(c.FuncIndex))
	r.w.WriteString(functionName)
	r.w.WriteString(fmt.Sprintf("%.6f", c.WeightedHits))
	return r.w.EndLine()
}

// OTUCounts emits `OTU-COUNTS\tID[L]\tcount1-oI1\tcount2-oI2\t…`.
func (r *RecordWriter) OTUCounts(id string, length int, entries []OTUCount, otuName func(int32) string) error {
	if r.HitsOnly {
		return nil
	}
	r.w.WriteString("OTU-COUNTS")
	r.w.WriteString(fmt.Sprintf("%s[%d]", id, length))
	for _, e := range entries {
		r.w.WriteString(fmt.Sprintf("%d-%d", e.Count, e.OTUIndex))
	}
	return r.w.EndLine()
}

// FlushMarker emits the `//` line terminating one batch, after every FLUSH
// request.
func (r *RecordWriter) FlushMarker() error {
	r.w.WriteString("//")
	return r.w.EndLine()
}

// OK emits the per-connection option-line acknowledgment, suppressed when
// hits-only.
func (r *RecordWriter) OK(o Opts) error {
	if r.HitsOnly {
		return nil
	}
	r.w.WriteString(fmt.Sprintf(
		"OK aa=%v debug=%d min_hits=%d min_weighted_hits=%v order_constraint=%v max_gap=%d",
		o.AA, o.Debug, o.MinHits, o.MinWeightedHits, o.OrderConstraint, o.MaxGap))
	return r.w.EndLine()
}

// Err emits a per-request `ERR message` line (server mode option-line or
// contig-too-long errors).
func (r *RecordWriter) Err(message string) error {
	r.w.WriteString("ERR " + message)
	return r.w.EndLine()
}

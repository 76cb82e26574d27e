package kmerscan

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Dictionary is the read-only, concurrently-shareable state every Session
// looks up against: the signature table plus the function/OTU name arrays.
// One Dictionary is constructed per process and handed to every Session,
// pipe-mode or per-connection.
type Dictionary struct {
	Table     *SignatureTable
	Functions *NameIndex
	OTUs      *NameIndex
}

// Session owns all the per-request mutable state: thresholds, hit buffer,
// OTU tally, reusable residue buffer. It is the only place two concurrent
// clients could otherwise collide, so a server keeps one Session per
// connection and never lets Sessions share more than the (read-only)
// Dictionary.
type Session struct {
	dict *Dictionary
	opts Opts

	otuTally OTUTally
	residues []uint8
}

// NewSession constructs a Session against dict, seeded with opts (pipe-mode
// startup defaults, or a server's per-connection reset point).
func NewSession(dict *Dictionary, opts Opts) *Session {
	s := &Session{dict: dict}
	s.Reset(opts)
	return s
}

// Reset re-seeds the session's settings to opts and clears all per-request
// buffers, the way a server resets each fresh connection to its startup
// defaults.
func (s *Session) Reset(opts Opts) {
	s.opts = opts
	s.otuTally.Reset()
}

// Opts returns the session's current settings, e.g. for the server's `OK`
// acknowledgment line.
func (s *Session) Opts() Opts { return s.opts }

// SetOpts replaces the session's grouper/debug/mode settings. Unlike Reset
// it leaves the OTU tally as it is.
func (s *Session) SetOpts(opts Opts) { s.opts = opts }

// HandleRequest processes one FASTA record end to end: translation (DNA
// path) or pass-through (AA path), six-frame (or single-frame) scanning,
// hit grouping into CALLs, and OTU tallying. Records go to w in a fixed
// order that downstream consumers parse positionally:
// `processing`/`PROTEIN-ID`, then per-frame TRANSLATION + HIT*/CALL*,
// then OTU-COUNTS.
func (s *Session) HandleRequest(w *RecordWriter, req Request) error {
	if len(req.Seq) > MaxSeqLen {
		return errors.E(fmt.Sprintf("kmerscan: contig %q exceeds max sequence length %d", req.ID, MaxSeqLen))
	}

	s.otuTally.Reset()
	length := len(req.Seq)

	if s.opts.AA {
		if err := w.ProteinID(req.ID, length); err != nil {
			return err
		}
		s.residues = EncodeResidues(req.Seq, s.residues)
		if err := s.scanFrame(w, req.ID, length, false, 0, s.residues); err != nil {
			return err
		}
	} else {
		if err := w.Processing(req.ID, length); err != nil {
			return err
		}
		for _, frame := range SixFrames(req.Seq, s.opts.StrandFilter) {
			if err := w.Translation(req.ID, length, frame.Reverse, frame.Offset); err != nil {
				return err
			}
			s.residues = EncodeResidues(frame.Translation, s.residues)
			if err := s.scanFrame(w, req.ID, length, frame.Reverse, frame.Offset, s.residues); err != nil {
				return err
			}
		}
	}

	return w.OTUCounts(req.ID, length, s.otuTally.Entries(), s.dict.OTUs.Name)
}

// scanFrame runs the scanner and grouper over one translated frame's
// residues. Debug HIT lines are written here, the only place that observes
// every raw hit before the grouper's accept/reject decision.
func (s *Session) scanFrame(w *RecordWriter, id string, length int, reverse bool, offset int, residues []uint8) error {
	var writeErr error
	params := s.opts.grouperParams()
	g := NewGrouper(params, s.opts.Debug, func(call CallRecord) {
		if writeErr != nil {
			return
		}
		writeErr = w.Call(call, s.dict.Functions.Name(call.FuncIndex))
	}, func(otuIndex int32) {
		s.otuTally.Add(otuIndex)
	})

	ScanProtein(residues, s.dict.Table, func(h RawHit) {
		if writeErr != nil {
			return
		}
		if s.opts.Debug >= 1 {
			enc := encodeWindow(residues[h.From0InProt : h.From0InProt+K])
			if err := w.Hit(h.From0InProt, enc, h.AvgOffEnd, h.FuncIndex, h.FuncWeight, h.OTUIndex); err != nil {
				writeErr = err
				return
			}
		}
		g.Ingest(h)
	})
	if writeErr != nil {
		return writeErr
	}
	g.FrameEnd()
	return writeErr
}

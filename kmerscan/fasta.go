package kmerscan

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// MaxSeqLen bounds the total residue/base count of one contig. A request
// whose sequence exceeds this is a request-level error, not a framing
// error, and is reported by the caller.
const MaxSeqLen = 500_000_000

// maxIDLen bounds the whitespace-delimited ID token captured from a FASTA
// header line.
const maxIDLen = 2000

// Request is one FASTA record as framed by RequestScanner: either a
// sequence to annotate (Flush == false) or a FLUSH marker (Flush == true,
// ID/Seq unset).
type Request struct {
	ID    string
	Seq   []byte
	Flush bool
}

var errEOF = errors.New("kmerscan: eof")

// RequestScanner frames a stream of FASTA records: Scan(*Request) bool /
// Err() error over a bufio.Scanner, with the buffer sized for long
// contigs. RequestScanner is not safe for concurrent use.
type RequestScanner struct {
	b       *bufio.Scanner
	err     error
	pending []byte // header line carried over from the previous Scan
}

// NewRequestScanner wraps r for FASTA/FLUSH framing.
func NewRequestScanner(r io.Reader) *RequestScanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64*1024), 1<<24)
	return &RequestScanner{b: b}
}

// Scan reads the next record into req, returning false at EOF or on error;
// callers must check Err afterward. A record whose ID begins with "FLUSH"
// sets req.Flush and leaves ID/Seq empty.
func (s *RequestScanner) Scan(req *Request) bool {
	if s.err != nil {
		return false
	}

	var header []byte
	if s.pending != nil {
		header = s.pending
		s.pending = nil
	} else {
		for {
			if !s.b.Scan() {
				if s.err = s.b.Err(); s.err == nil {
					s.err = errEOF
				}
				return false
			}
			line := s.b.Bytes()
			if len(line) == 0 {
				continue
			}
			if line[0] != '>' {
				// Stray sequence bytes before the first header are ignored,
				// matching a tolerant FASTA reader.
				continue
			}
			header = append([]byte(nil), line[1:]...)
			break
		}
	}

	id := firstToken(header, maxIDLen)
	*req = Request{}
	if strings.HasPrefix(id, "FLUSH") {
		req.Flush = true
		return true
	}
	req.ID = id

	var seq bytes.Buffer
	for s.b.Scan() {
		line := s.b.Bytes()
		if len(line) > 0 && line[0] == '>' {
			s.pending = append([]byte(nil), line[1:]...)
			break
		}
		for _, ch := range line {
			if ch == ' ' || ch == '\t' || ch == '\r' {
				continue
			}
			seq.WriteByte(upper(ch))
		}
	}
	if s.pending == nil {
		if err := s.b.Err(); err != nil {
			s.err = err
			return false
		}
	}
	req.Seq = seq.Bytes()
	return true
}

// Err returns the framing error, if any (nil at a clean EOF).
func (s *RequestScanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

func firstToken(header []byte, maxLen int) string {
	i := 0
	for i < len(header) && header[i] != ' ' && header[i] != '\t' && header[i] != '\r' && header[i] != '\n' {
		i++
	}
	if i > maxLen {
		i = maxLen
	}
	return string(header[:i])
}

func upper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - ('a' - 'A')
	}
	return ch
}

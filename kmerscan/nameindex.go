package kmerscan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// NameIndex is an in-memory, dense-from-zero index -> name array, loaded
// from function.index or otu.index. Lookups are a plain slice index: the
// loader rejects duplicate indices and any gap in 0..max up front (lines
// may come in any order), so no map is kept behind the array.
type NameIndex struct {
	names []string
}

// Name returns the name registered at idx, or "" if idx is out of range
// (this can only happen for a corrupt/mismatched table, since a
// well-formed build never emits an index beyond what was registered here).
func (n *NameIndex) Name(idx int32) string {
	if idx < 0 || int(idx) >= len(n.names) {
		return ""
	}
	return n.names[idx]
}

// Len returns the number of registered names.
func (n *NameIndex) Len() int { return len(n.names) }

// LoadNameIndex reads a `function.index`/`otu.index`-format file: lines
// `index\tname\n`, indices dense and starting at 0. It opens path through
// file.Open and transparently decompresses a .gz suffix via
// compress.NewReaderPath.
func LoadNameIndex(ctx context.Context, path string) (*NameIndex, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "kmerscan: opening name index", path)
	}
	defer f.Close(ctx)

	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}

	seen := map[int32]string{}
	maxIdx := int32(-1)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			return nil, errors.E(fmt.Sprintf("kmerscan: %s:%d: expected 'index\\tname'", path, lineNo))
		}
		idx64, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("kmerscan: %s:%d: bad index", path, lineNo))
		}
		idx := int32(idx64)
		if _, dup := seen[idx]; dup {
			return nil, errors.E(fmt.Sprintf("kmerscan: %s:%d: duplicate index %d", path, lineNo, idx))
		}
		seen[idx] = fields[1]
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "kmerscan: reading name index", path)
	}

	names := make([]string, maxIdx+1)
	for i := int32(0); i <= maxIdx; i++ {
		name, ok := seen[i]
		if !ok {
			return nil, errors.E(fmt.Sprintf("kmerscan: %s: indices must be dense from 0; missing %d", path, i))
		}
		names[i] = name
	}
	return &NameIndex{names: names}, nil
}

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
	"github.com/grailbio/base/log"
)

// BuildFromFile builds a SignatureTable from a `final.kmers`-format file:
// lines `kmer\tavg_from_end\tfunction_index\tweight\totu_index`, at least
// 4 fields required. slotCount is the table capacity (CLI `-s`);
// CheckLoadFactor runs after every insert, so the build fails as soon as
// occupancy reaches half.
func BuildFromFile(ctx context.Context, path string, slotCount uint64) (*SignatureTable, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "kmerscan: opening kmer file", path)
	}
	defer f.Close(ctx)

	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}

	table := NewTable(slotCount)
	residues := make([]uint8, K)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	nLoaded := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, errors.E(fmt.Sprintf("kmerscan: %s:%d: expected at least 4 fields, got %d", path, lineNo, len(fields)))
		}
		kmerStr := fields[0]
		if len(kmerStr) != K {
			return nil, errors.E(fmt.Sprintf("kmerscan: %s:%d: kmer %q is not length %d", path, lineNo, kmerStr, K))
		}
		avgFromEnd, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("kmerscan: %s:%d: bad avg_from_end", path, lineNo))
		}
		funcIndex, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("kmerscan: %s:%d: bad function_index", path, lineNo))
		}
		weight, err := strconv.ParseFloat(fields[3], 32)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("kmerscan: %s:%d: bad weight", path, lineNo))
		}
		var otuIndex int64
		if len(fields) >= 5 {
			otuIndex, err = strconv.ParseInt(fields[4], 10, 32)
			if err != nil {
				return nil, errors.E(err, fmt.Sprintf("kmerscan: %s:%d: bad otu_index", path, lineNo))
			}
		}

		residues = EncodeResidues([]byte(kmerStr), residues)
		for _, v := range residues {
			if v == Ambiguous {
				return nil, errors.E(fmt.Sprintf("kmerscan: %s:%d: kmer %q contains a residue outside the 20-letter alphabet", path, lineNo, kmerStr))
			}
		}
		enc := encodeWindow(residues)
		table.Insert(enc, int32(funcIndex), int32(otuIndex), uint16(avgFromEnd), float32(weight))
		nLoaded++
		if err := table.CheckLoadFactor(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "kmerscan: reading kmer file", path)
	}
	log.Printf("kmerscan: loaded %d k-mers into a %d-slot table from %s", nLoaded, slotCount, path)
	return table, nil
}

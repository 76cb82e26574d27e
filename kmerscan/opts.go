package kmerscan

import (
	"flag"
	"strings"
)

// StrandFilter restricts which of the six DNA reading frames are scanned.
type StrandFilter int

const (
	// StrandBoth scans all six frames.
	StrandBoth StrandFilter = iota
	StrandForwardOnly
	StrandReverseOnly
)

// Opts holds the per-session settings: grouper thresholds plus the
// input-mode and diagnostic switches. A Session is seeded from Opts at
// construction (pipe mode) or at the start of every connection (server
// mode), so one client's option line never leaks into the next
// connection.
type Opts struct {
	AA              bool
	Debug           int
	HitsOnly        bool
	MinHits         int
	MinWeightedHits float64
	OrderConstraint bool
	MaxGap          uint32
	StrandFilter    StrandFilter
}

// DefaultOpts is the server's stock configuration: DNA input, no debug
// logging, all six frames, and the stock grouping thresholds.
var DefaultOpts = Opts{
	AA:              false,
	Debug:           0,
	HitsOnly:        false,
	MinHits:         5,
	MinWeightedHits: 0,
	OrderConstraint: false,
	MaxGap:          200,
	StrandFilter:    StrandBoth,
}

func (o Opts) grouperParams() GrouperParams {
	return GrouperParams{
		MinHits:         o.MinHits,
		MinWeightedHits: o.MinWeightedHits,
		MaxGap:          o.MaxGap,
		OrderConstraint: o.OrderConstraint,
	}
}

// ParseOptionLine parses a server-mode per-connection option line: a
// shell-style argument list supporting -a, -d N, -m N, -M N, -O, -g N.
// base supplies every field an option line doesn't mention (the server's
// startup defaults). Unlike the CLI in cmd/kmer-annotate, an option line
// never sets -s/-w/-D/-l/-L/-P, so those flags don't exist here at all.
func ParseOptionLine(line string, base Opts) (Opts, error) {
	opts := base
	fs := flag.NewFlagSet("option-line", flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder)) // suppress flag's own usage/error text
	fs.BoolVar(&opts.AA, "a", base.AA, "")
	fs.IntVar(&opts.Debug, "d", base.Debug, "")
	fs.IntVar(&opts.MinHits, "m", base.MinHits, "")
	var maxGap int
	fs.IntVar(&maxGap, "g", int(base.MaxGap), "")
	fs.Float64Var(&opts.MinWeightedHits, "M", base.MinWeightedHits, "")
	fs.BoolVar(&opts.OrderConstraint, "O", base.OrderConstraint, "")

	fields := strings.Fields(line)
	if err := fs.Parse(fields); err != nil {
		return Opts{}, err
	}
	opts.MaxGap = uint32(maxGap)
	return opts, nil
}

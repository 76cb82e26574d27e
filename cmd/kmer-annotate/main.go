// Command kmer-annotate matches protein k-mers translated from DNA or AA
// FASTA input against a precomputed signature dictionary, emitting CALL and
// OTU-COUNTS records. It has three modes, selected by flags:
//
//	-w            build mode: read -D/final.kmers, write -D/kmer.table.mem_map
//	-l PORT       server mode: serve line-oriented FASTA requests over TCP
//	(neither)     pipe mode: read FASTA from stdin (or -i), write to stdout (or -o)
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/csbio/kmerscan/kmerscan"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

func usage() {
	fmt.Fprintf(os.Stderr, `kmer-annotate: protein k-mer signature annotator

  kmer-annotate -w -D DIR -s N            build kmer.table.mem_map from DIR/final.kmers
  kmer-annotate -D DIR [flags] < in > out pipe mode
  kmer-annotate -D DIR -l PORT [flags]    server mode

Flags:
`)
	flag.PrintDefaults()
}

type flags struct {
	aa              bool
	debug           int
	slotCount       uint64
	build           bool
	dataDir         string
	minHits         int
	minWeightedHits float64
	orderConstraint bool
	maxGap          int
	port            int
	portSet         bool
	portFile        string
	parentPID       int
	hitsOnly        bool
	inPath          string
	outPath         string
	strand          string
}

func parseFlags() flags {
	var f flags
	flag.BoolVar(&f.aa, "a", false, "input is amino-acid FASTA (default: DNA, six-frame translated)")
	flag.IntVar(&f.debug, "d", 0, "debug level; >=1 emits HIT lines")
	var slotCount uint
	flag.UintVar(&slotCount, "s", 1<<20, "signature table capacity (build mode only; a loaded table takes its size from the file header)")
	flag.BoolVar(&f.build, "w", false, "build mode: read DIR/final.kmers, write DIR/kmer.table.mem_map")
	flag.StringVar(&f.dataDir, "D", ".", "data directory (function.index, otu.index, final.kmers, kmer.table.mem_map)")
	flag.IntVar(&f.minHits, "m", kmerscan.DefaultOpts.MinHits, "grouper min_hits")
	flag.Float64Var(&f.minWeightedHits, "M", kmerscan.DefaultOpts.MinWeightedHits, "grouper min_weighted_hits")
	flag.BoolVar(&f.orderConstraint, "O", kmerscan.DefaultOpts.OrderConstraint, "enable grouper order_constraint")
	flag.IntVar(&f.maxGap, "g", int(kmerscan.DefaultOpts.MaxGap), "grouper max_gap")
	flag.IntVar(&f.port, "l", -1, "server mode: TCP port to listen on (0 = ephemeral)")
	flag.StringVar(&f.portFile, "L", "", "server mode: write the chosen port to this file")
	flag.IntVar(&f.parentPID, "P", 0, "exit if this parent PID disappears")
	flag.BoolVar(&f.hitsOnly, "H", false, "hits-only: suppress everything but HIT lines")
	flag.StringVar(&f.inPath, "i", "", "pipe mode: input file (default stdin)")
	flag.StringVar(&f.outPath, "o", "", "pipe mode: output file (default stdout)")
	flag.StringVar(&f.strand, "F", "both", "strand filter for DNA input: both, fwd, rev")
	flag.Usage = usage
	flag.Parse()

	f.slotCount = uint64(slotCount)
	f.portSet = f.port >= 0
	return f
}

func (f flags) path(name string) string {
	dir := strings.TrimSuffix(f.dataDir, "/")
	return dir + "/" + name
}

func (f flags) opts() kmerscan.Opts {
	return kmerscan.Opts{
		AA:              f.aa,
		Debug:           f.debug,
		HitsOnly:        f.hitsOnly,
		MinHits:         f.minHits,
		MinWeightedHits: f.minWeightedHits,
		OrderConstraint: f.orderConstraint,
		MaxGap:          uint32(f.maxGap),
		StrandFilter:    f.strandFilter(),
	}
}

func (f flags) strandFilter() kmerscan.StrandFilter {
	switch f.strand {
	case "fwd":
		return kmerscan.StrandForwardOnly
	case "rev":
		return kmerscan.StrandReverseOnly
	default:
		return kmerscan.StrandBoth
	}
}

func main() {
	f := parseFlags()
	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if f.build {
		runBuild(ctx, f)
		return
	}

	dict := loadDictionary(ctx, f)
	defer dict.Table.Close()

	if f.portSet {
		runServer(ctx, f, dict)
		return
	}
	runPipe(ctx, f, dict)
}

func runBuild(ctx context.Context, f flags) {
	table, err := kmerscan.BuildFromFile(ctx, f.path("final.kmers"), f.slotCount)
	if err != nil {
		log.Fatal(err)
	}
	if err := table.Persist(ctx, f.path("kmer.table.mem_map")); err != nil {
		log.Fatal(err)
	}
	log.Printf("kmer-annotate: built %s (%d/%d slots)", f.path("kmer.table.mem_map"), table.LoadedCount(), table.SlotCount())
}

func loadDictionary(ctx context.Context, f flags) *kmerscan.Dictionary {
	table, err := kmerscan.LoadTable(f.path("kmer.table.mem_map"))
	if err != nil {
		log.Fatal(errors.E(err, "kmer-annotate: loading signature table"))
	}
	functions, err := kmerscan.LoadNameIndex(ctx, f.path("function.index"))
	if err != nil {
		log.Fatal(errors.E(err, "kmer-annotate: loading function.index"))
	}
	otus, err := kmerscan.LoadNameIndex(ctx, f.path("otu.index"))
	if err != nil {
		log.Fatal(errors.E(err, "kmer-annotate: loading otu.index"))
	}
	return &kmerscan.Dictionary{Table: table, Functions: functions, OTUs: otus}
}

// runPipe processes one stream of FASTA/FLUSH requests end to end with a
// single Session for the whole run. A contig exceeding MaxSeqLen is fatal
// here; only server mode downgrades it to a per-request error.
func runPipe(ctx context.Context, f flags, dict *kmerscan.Dictionary) {
	in := io.Reader(os.Stdin)
	if f.inPath != "" {
		rc, err := file.Open(ctx, f.inPath)
		if err != nil {
			log.Fatal(errors.E(err, "kmer-annotate: opening input"))
		}
		defer rc.Close(ctx)
		in = rc.Reader(ctx)
	}
	out := io.Writer(os.Stdout)
	if f.outPath != "" {
		wc, err := file.Create(ctx, f.outPath)
		if err != nil {
			log.Fatal(errors.E(err, "kmer-annotate: creating output"))
		}
		defer wc.Close(ctx)
		out = wc.Writer(ctx)
	}

	sess := kmerscan.NewSession(dict, f.opts())
	w := kmerscan.NewRecordWriter(out, f.hitsOnly)
	reqScanner := kmerscan.NewRequestScanner(in)

	var req kmerscan.Request
	for reqScanner.Scan(&req) {
		if req.Flush {
			if err := w.FlushMarker(); err != nil {
				log.Fatal(err)
			}
			if err := w.Flush(); err != nil {
				log.Fatal(err)
			}
			continue
		}
		if err := sess.HandleRequest(w, req); err != nil {
			log.Fatal(err)
		}
	}
	if err := reqScanner.Err(); err != nil {
		log.Fatal(errors.E(err, "kmer-annotate: reading input"))
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
}

// runServer multiplexes TCP clients, one goroutine per connection, each
// owning its own Session. It optionally watches a parent PID and stops
// accepting once that process disappears.
func runServer(ctx context.Context, f flags, dict *kmerscan.Dictionary) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", f.port))
	if err != nil {
		log.Fatal(errors.E(err, "kmer-annotate: listening"))
	}
	addr := ln.Addr().(*net.TCPAddr)
	log.Printf("kmer-annotate: listening on port %d", addr.Port)
	if f.portFile != "" {
		if err := os.WriteFile(f.portFile, []byte(strconv.Itoa(addr.Port)), 0644); err != nil {
			log.Fatal(errors.E(err, "kmer-annotate: writing port file"))
		}
	}

	// SIGPIPE must not kill the process when a client disconnects
	// mid-write. Go already turns a broken pipe into an io.Write error
	// rather than a signal for network conns; this guards a stray
	// os.Stdout/os.Stderr write racing a client close.
	signal.Ignore(syscall.SIGPIPE)

	if f.parentPID != 0 {
		go watchParent(f.parentPID, ln)
	}

	startupOpts := f.opts()
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("kmer-annotate: accept: %v", err)
			return
		}
		go serveConn(conn, dict, startupOpts)
	}
}

// watchParent polls for the named PID's disappearance and closes ln once it
// is gone, which unblocks Accept with an error and ends the server loop.
func watchParent(pid int, ln net.Listener) {
	for {
		time.Sleep(time.Second)
		if err := syscall.Kill(pid, 0); err != nil {
			log.Printf("kmer-annotate: parent pid %d gone, shutting down", pid)
			ln.Close()
			return
		}
	}
}

func serveConn(conn net.Conn, dict *kmerscan.Dictionary, startupOpts kmerscan.Opts) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	opts := startupOpts
	w := kmerscan.NewRecordWriter(conn, opts.HitsOnly)

	first, err := r.Peek(1)
	if err == nil && len(first) == 1 && first[0] == '-' {
		line, err := r.ReadString('\n')
		if err != nil {
			return // client I/O error: abandon silently
		}
		opts, err = kmerscan.ParseOptionLine(strings.TrimRight(line, "\r\n"), startupOpts)
		if err != nil {
			errW := kmerscan.NewRecordWriter(conn, false)
			errW.Err(err.Error())
			errW.Flush()
			return
		}
		w = kmerscan.NewRecordWriter(conn, opts.HitsOnly)
		if err := w.OK(opts); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}

	sess := kmerscan.NewSession(dict, opts)
	reqScanner := kmerscan.NewRequestScanner(r)
	var req kmerscan.Request
	for reqScanner.Scan(&req) {
		if req.Flush {
			if err := w.FlushMarker(); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			continue
		}
		if err := sess.HandleRequest(w, req); err != nil {
			// Request-level error (e.g. contig too long): surface as ERR
			// and keep serving this connection.
			if werr := w.Err(err.Error()); werr != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			continue
		}
	}
	// reqScanner.Err() on a client disconnect is abandoned silently; there
	// is nothing further to report.
}

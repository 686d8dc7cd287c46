/*
consense builds consensus trees (strict, majority rule, or extended majority
rule) from collections of unrooted trees on the same taxa set, such as
bootstrap replicates.

usage: consense [ -t <threshold> | -f <format> | -o <prefix> | -c <config> | -n <procs> | -h | -v ] <tree_file>...

positional arguments:

	<tree_file>	file containing one or more trees; one consensus tree is printed per file

flags:

	-c file
	  	YAML config file (flags given explicitly take precedence)
	-f format
	  	tree file format [ newick | nexus ] (default "newick")
	-h	prints this message and exits
	-n int
	  	number of parallel processes
	-o prefix
	  	write split table (<prefix>.csv) and support plot (<prefix>.png)
	-t threshold
	  	consensus threshold [0, 1]; 1 strict, 0.5 majority rule, below 0.5 extended majority rule (default 0)
	-v	prints version number and exits

examples:

	  majority rule consensus of bootstrap trees:
		consense -t 0.5 bootstraps.nwk > consensus.nwk 2> log.txt

	  extended majority rule consensus with split table and plot:
		consense -o mre bootstraps.nwk > mre.nwk 2> log.txt
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jsdoublel/consense/internal/config"
	"github.com/jsdoublel/consense/internal/consensus"
	pr "github.com/jsdoublel/consense/internal/prep"
)

const (
	Version    = "v0.1.0"
	ErrMessage = "consense encountered an error ::"
)

type args struct {
	opts      config.Options // threshold, format, output prefix, processes
	treeFiles []string       // input tree files
}

// Worker count for nFiles independent runs: the requested count, capped by
// GOMAXPROCS and by the number of files, since each run is single threaded.
func setNProcs(nprocs, nFiles int) int {
	limit := min(runtime.GOMAXPROCS(0), max(nFiles, 1))
	switch {
	case nprocs <= 0:
		return limit
	case nprocs > limit:
		pr.Logger.Printf("-n %d lowered to %d (GOMAXPROCS %d, %d tree file(s))\n",
			nprocs, limit, runtime.GOMAXPROCS(0), nFiles)
		return limit
	default:
		return nprocs
	}
}

func parseArgs() args {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr,
			"usage: consense [ -t <threshold> | -f <format> | -o <prefix> | -c <config> | -n <procs> | -h | -v ] <tree_file>...\n",
			"\n",
			"positional arguments:\n\n",
			"  <tree_file>\tfile containing one or more trees; one consensus tree is printed per file\n",
			"\n",
			"flags:\n\n",
		)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr,
			"\n",
			"examples:\n\n",
			"  majority rule consensus of bootstrap trees:\n",
			"\tconsense -t 0.5 bootstraps.nwk > consensus.nwk 2> log.txt\n\n",
			"  extended majority rule consensus with split table and plot:\n",
			"\tconsense -o mre bootstraps.nwk > mre.nwk 2> log.txt\n",
		)
	}
	defaults := config.Default()
	thresh := defaults.Threshold
	format := defaults.Format
	flag.Var(&thresh, "t", "consensus `threshold` [0, 1]; 1 strict, 0.5 majority rule, below 0.5 extended majority rule (default 0)")
	flag.Var(&format, "f", "tree file `format` [ newick | nexus ] (default \"newick\")")
	prefix := flag.String("o", "", "write split table (<prefix>.csv) and support plot (<prefix>.png)")
	configFile := flag.String("c", "", "YAML config `file` (flags given explicitly take precedence)")
	help := flag.Bool("h", false, "prints this message and exits")
	ver := flag.Bool("v", false, "prints version number and exits")
	nprocs := flag.Int("n", 0, "number of parallel processes")
	flag.Parse()
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if *ver {
		fmt.Printf("consense version %s\n", Version)
		os.Exit(0)
	}
	if flag.NArg() < 1 {
		usageError("no tree file given; expected at least one <tree_file>")
	}
	opts := defaults
	if *configFile != "" {
		var err error
		if opts, err = config.Load(*configFile); err != nil {
			usageError("%s", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			opts.Threshold = thresh
		case "f":
			opts.Format = format
		case "o":
			opts.Prefix = *prefix
		case "n":
			opts.Procs = *nprocs
		}
	})
	opts.Procs = setNProcs(opts.Procs, flag.NArg())
	return args{opts: opts, treeFiles: flag.Args()}
}

// Reports a command line problem followed by the usage text, exit status 2
// like the flag package's own errors
func usageError(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "consense: "+format+"\n\n", a...)
	flag.Usage()
	os.Exit(2)
}

// Runs every tree file as an independent consensus computation
func runAll(args args) ([]*consensus.Result, error) {
	results := make([]*consensus.Result, len(args.treeFiles))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(args.opts.Procs)
	for i, path := range args.treeFiles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := consensus.ConsensusFromFile(path, args.opts.Format, args.opts.Threshold)
			if err != nil {
				return err
			}
			pr.Logger.Printf("%s: %d trees, min support %d, %d splits in consensus\n",
				path, res.TreeCount, res.MinSupport, res.Splits.Len())
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// output prefix of the i-th tree file
func outPrefix(prefix string, i, n int) string {
	if n == 1 {
		return prefix
	}
	return fmt.Sprintf("%s-%d", prefix, i+1)
}

func writeSplitFiles(res *consensus.Result, prefix string) error {
	f, err := os.Create(prefix + ".csv")
	if err != nil {
		return fmt.Errorf("%w, %s", pr.ErrWritingFile, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			pr.Logger.Printf("could not close file %s.csv, %s", prefix, err)
		}
	}()
	if err := pr.WriteSplitsCSV(res.Splits, res.Taxa, f); err != nil {
		return err
	}
	if res.Splits.Len() == 0 {
		pr.Logger.Printf("no splits in consensus; skipping %s.png\n", prefix)
		return nil
	}
	return pr.WriteSupportPlot(res.Splits, prefix)
}

func main() {
	pr.Logger.Printf("consense version %s", Version)
	args := parseArgs()
	if data, err := args.opts.Marshal(); err == nil {
		pr.Logger.Printf("effective configuration:\n%s", data)
	}
	pr.Logger.Printf("running consensus (threshold %s) on %d file(s)...\n", args.opts.Threshold, len(args.treeFiles))
	results, err := runAll(args)
	if err != nil {
		pr.Logger.Fatalf("%s %s\n", ErrMessage, err)
	}
	for i, res := range results {
		if err := pr.WriteNewick(res.Tree, os.Stdout); err != nil {
			pr.Logger.Fatalf("%s %s\n", ErrMessage, err)
		}
		if args.opts.Prefix != "" {
			if err := writeSplitFiles(res, outPrefix(args.opts.Prefix, i, len(results))); err != nil {
				pr.Logger.Fatalf("%s %s\n", ErrMessage, err)
			}
		}
	}
}

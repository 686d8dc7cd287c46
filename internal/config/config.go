// Package config handles the optional YAML run configuration of consense.
//
// Example file:
//
//	# consense configuration
//	threshold: 0.5   # 1.0 strict, 0.5 majority rule, < 0.5 extended majority rule
//	format: newick   # newick | nexus
//	prefix: out/run  # writes <prefix>.csv and <prefix>.png when set
//	procs: 4         # number of input files processed in parallel
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jsdoublel/consense/internal/consensus"
	pr "github.com/jsdoublel/consense/internal/prep"
)

var ErrInvalidConfig = errors.New("invalid config")

// File models the config YAML file
type File struct {
	Threshold *float64 `yaml:"threshold,omitempty"`
	Format    string   `yaml:"format,omitempty"`
	Prefix    string   `yaml:"prefix,omitempty"`
	Procs     int      `yaml:"procs,omitempty"`
}

// Options for a consense run
type Options struct {
	Threshold consensus.Threshold
	Format    pr.Format
	Prefix    string // output prefix for csv and plot files (none if empty)
	Procs     int    // number of parallel processes (0 for all available)
}

func Default() Options {
	return Options{
		Threshold: consensus.MRE,
		Format:    pr.Newick,
	}
}

// Reads the config file at path on top of the default options
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("error reading config file: %w", err)
	}
	opts, err := Parse(data)
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Parses YAML config data on top of the default options. Unknown keys are
// rejected.
func Parse(data []byte) (Options, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w, %s", ErrInvalidConfig, err)
	}
	return f.Options()
}

// Validated options from the file, defaults for missing keys
func (f File) Options() (Options, error) {
	opts := Default()
	if f.Threshold != nil {
		t, err := consensus.ParseThreshold(*f.Threshold)
		if err != nil {
			return Options{}, fmt.Errorf("%w, %w", ErrInvalidConfig, err)
		}
		opts.Threshold = t
	}
	if f.Format != "" {
		if err := opts.Format.Set(f.Format); err != nil {
			return Options{}, fmt.Errorf("%w, %w", ErrInvalidConfig, err)
		}
	}
	if f.Procs < 0 {
		return Options{}, fmt.Errorf("%w, procs must not be negative (%d)", ErrInvalidConfig, f.Procs)
	}
	opts.Prefix = f.Prefix
	opts.Procs = f.Procs
	return opts, nil
}

// Config file equivalent to opts
func (opts Options) file() File {
	t := float64(opts.Threshold)
	return File{
		Threshold: &t,
		Format:    opts.Format.String(),
		Prefix:    opts.Prefix,
		Procs:     opts.Procs,
	}
}

// YAML config file equivalent to opts, as logged at startup
func (opts Options) Marshal() ([]byte, error) {
	return yaml.Marshal(opts.file())
}

// Package used for reading input trees and writing consensus results
package prep

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/evolbioinfo/gotree/io/newick"
	"github.com/evolbioinfo/gotree/io/nexus"
	"github.com/evolbioinfo/gotree/tree"
)

var (
	ErrInvalidFile   = errors.New("invalid file")
	ErrInvalidFormat = errors.New("invalid format")
	ErrWritingFile   = errors.New("error writing file")
)

// Logger for consense's own progress and error messages. gotree reports
// through the standard logger, which is muted while trees are parsed; Logger
// is never muted, so concurrent runs keep their output.
var Logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// Input tree file format
type Format int

const (
	Newick Format = iota
	Nexus
)

var formatNames = [...]string{
	Newick: "newick",
	Nexus:  "nexus",
}

func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == s {
			return Format(f), nil
		}
	}
	return Newick, fmt.Errorf("%w, trees can be read as newick or nexus, not %q", ErrInvalidFormat, s)
}

// Implements flag.Value
func (f *Format) Set(s string) error {
	format, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = format
	return nil
}

func (f Format) String() string {
	if int(f) < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Source of trees read one at a time. Next returns io.EOF after the last tree.
type TreeStream interface {
	Next() (*tree.Tree, error)
}

// gotree logs every oddity it meets through the standard logger, which can
// add up to thousands of lines for a bootstrap file, so the standard logger is
// muted while any stream parses. Counted so that parallel readers restore the
// original writer only once.
var quiet struct {
	sync.Mutex
	n   int
	out io.Writer
}

func silenceLog() (restore func()) {
	quiet.Lock()
	if quiet.n == 0 {
		quiet.out = log.Writer()
		log.SetOutput(io.Discard)
	}
	quiet.n++
	quiet.Unlock()
	return func() {
		quiet.Lock()
		defer quiet.Unlock()
		if quiet.n--; quiet.n == 0 {
			log.SetOutput(quiet.out)
		}
	}
}

// Streams newick trees terminated by ';'. Trees may span lines and have any
// length; a ';' inside a quoted label or a [...] comment does not end a tree.
type NewickStream struct {
	reader *bufio.Reader
	buf    bytes.Buffer // text of the tree being read
	count  int          // trees read so far
}

func NewNewickStream(r io.Reader) *NewickStream {
	return &NewickStream{reader: bufio.NewReader(r)}
}

func (s *NewickStream) Next() (*tree.Tree, error) {
	for {
		chunk, err := s.nextChunk()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w, error reading tree %d: %s", ErrInvalidFile, s.count+1, err.Error())
		}
		text := bytes.TrimSpace(chunk)
		if len(text) == 0 {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w, tree %d is missing the closing ';'", ErrInvalidFormat, s.count+1)
		}
		restore := silenceLog()
		tre, perr := newick.NewParser(bytes.NewReader(text)).Parse()
		restore()
		if perr != nil {
			return nil, fmt.Errorf("%w, error parsing tree %d: %s", ErrInvalidFormat, s.count+1, perr.Error())
		}
		s.count++
		return tre, nil
	}
}

// Reads up to and including the next ';' that is outside quotes and comments.
// The returned bytes are only valid until the next call. At end of input the
// unterminated rest is returned with io.EOF.
func (s *NewickStream) nextChunk() ([]byte, error) {
	s.buf.Reset()
	var quote byte // closing quote of the current label, 0 outside labels
	depth := 0     // comment nesting
	for {
		c, err := s.reader.ReadByte()
		if err != nil {
			return s.buf.Bytes(), err
		}
		s.buf.WriteByte(c)
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case depth > 0:
			if c == '[' {
				depth++
			} else if c == ']' {
				depth--
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ';':
			return s.buf.Bytes(), nil
		}
	}
}

// Trees of a nexus file. gotree parses the file as a whole, so all trees are
// held in memory.
type NexusStream struct {
	trees []*tree.Tree
	names []string
	next  int
}

func NewNexusStream(r io.Reader) (*NexusStream, error) {
	restore := silenceLog()
	defer restore()
	nex, err := nexus.NewParser(r).Parse()
	if err != nil {
		return nil, fmt.Errorf("%w, error reading nexus trees: %s", ErrInvalidFormat, err.Error())
	}
	s := &NexusStream{}
	nex.IterateTrees(func(name string, t *tree.Tree) {
		s.trees = append(s.trees, t)
		s.names = append(s.names, name)
	})
	return s, nil
}

func (s *NexusStream) Next() (*tree.Tree, error) {
	if s.next >= len(s.trees) {
		return nil, io.EOF
	}
	s.next++
	return s.trees[s.next-1], nil
}

// Tree names in file order
func (s *NexusStream) Names() []string {
	return s.names
}

// Tree stream backed by an open file
type TreeFile struct {
	TreeStream
	Path string
	file *os.File
}

// Opens a tree file of the given format for streaming
func OpenTreeStream(path string, format Format) (*TreeFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w, error opening %s: %s", ErrInvalidFile, path, err.Error())
	}
	tf := &TreeFile{Path: path, file: file}
	switch format {
	case Newick:
		tf.TreeStream = NewNewickStream(file)
	case Nexus:
		nex, err := NewNexusStream(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		tf.TreeStream = nex
	default:
		file.Close()
		return nil, fmt.Errorf("%w, unknown tree file format %s", ErrInvalidFile, format)
	}
	return tf, nil
}

// Names of the trees in the file if the format has them (nexus), else nil
func (tf *TreeFile) Names() []string {
	if nex, ok := tf.TreeStream.(*NexusStream); ok {
		return nex.Names()
	}
	return nil
}

func (tf *TreeFile) Close() error {
	return tf.file.Close()
}

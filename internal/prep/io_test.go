package prep

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/evolbioinfo/gotree/tree"

	gr "github.com/jsdoublel/consense/internal/graphs"
)

func readAll(t *testing.T, s TreeStream) ([]*tree.Tree, error) {
	t.Helper()
	trees := make([]*tree.Tree, 0)
	for {
		tre, err := s.Next()
		if errors.Is(err, io.EOF) {
			return trees, nil
		} else if err != nil {
			return trees, err
		}
		trees = append(trees, tre)
	}
}

func tipNames(tre *tree.Tree) []string {
	names := make([]string, 0)
	for _, tip := range tre.Tips() {
		names = append(names, tip.Name())
	}
	return names
}

func TestOpenTreeStream(t *testing.T) {
	testCases := []struct {
		name        string
		treeFile    string
		format      Format
		numTrees    int
		expectedErr error
	}{
		{
			name:        "basic",
			treeFile:    "testdata/trees.nwk",
			format:      Newick,
			numTrees:    3,
			expectedErr: nil,
		},
		{
			name:        "multi-line trees",
			treeFile:    "testdata/multiline.nwk",
			format:      Newick,
			numTrees:    2,
			expectedErr: nil,
		},
		{
			name:        "nexus",
			treeFile:    "testdata/trees.nex",
			format:      Nexus,
			numTrees:    2,
			expectedErr: nil,
		},
		{
			name:        "empty",
			treeFile:    "testdata/empty.nwk",
			format:      Newick,
			numTrees:    0,
			expectedErr: nil,
		},
		{
			name:        "bad tree",
			treeFile:    "testdata/badtree.nwk",
			format:      Newick,
			numTrees:    1,
			expectedErr: ErrInvalidFormat,
		},
		{
			name:        "bad tree (no ;)",
			treeFile:    "testdata/nosemi.nwk",
			format:      Newick,
			numTrees:    1,
			expectedErr: ErrInvalidFormat,
		},
		{
			name:        "missing file",
			treeFile:    "testdata/does-not-exist.nwk",
			format:      Newick,
			numTrees:    0,
			expectedErr: ErrInvalidFile,
		},
		{
			name:        "newick as nexus",
			treeFile:    "testdata/trees.nwk",
			format:      Nexus,
			numTrees:    0,
			expectedErr: ErrInvalidFormat,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tf, err := OpenTreeStream(test.treeFile, test.format)
			if err != nil {
				if !errors.Is(err, test.expectedErr) {
					t.Fatalf("Failed with unexpected error %+v", err)
				}
				t.Logf("%s", err)
				return
			}
			defer tf.Close()
			trees, err := readAll(t, tf)
			switch {
			case !errors.Is(err, test.expectedErr):
				t.Fatalf("Failed with unexpected error %+v", err)
			case len(trees) != test.numTrees:
				t.Errorf("read %d trees, expected %d", len(trees), test.numTrees)
			case err != nil:
				t.Logf("%s", err)
				return
			}
			for i, tre := range trees {
				if n := len(tipNames(tre)); n != 5 {
					t.Errorf("tree %d has %d tips, expected 5", i+1, n)
				}
			}
		})
	}
}

func TestNexusNames(t *testing.T) {
	f, err := os.Open("testdata/trees.nex")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := NewNexusStream(f)
	if err != nil {
		t.Fatalf("Failed with unexpected error %+v", err)
	}
	if !reflect.DeepEqual(s.Names(), []string{"tree1", "tree2"}) {
		t.Errorf("names %v != [tree1 tree2]", s.Names())
	}
}

func TestSilenceLog(t *testing.T) {
	var buf, own bytes.Buffer
	out := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(out)
	loggerOut := Logger.Writer()
	Logger.SetOutput(&own)
	defer Logger.SetOutput(loggerOut)
	restore := silenceLog()
	inner := silenceLog()
	log.Print("hidden")
	Logger.Print("progress")
	inner()
	log.Print("hidden")
	restore()
	log.Print("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output %q", buf.String())
	}
	if !strings.Contains(own.String(), "progress") {
		t.Errorf("Logger muted while gotree was silenced: %q", own.String())
	}
	s := NewNewickStream(strings.NewReader("(A,B,(C,D));"))
	if _, err := s.Next(); err != nil {
		t.Fatal(err)
	}
	log.Print("after parse")
	if !strings.Contains(buf.String(), "after parse") {
		t.Errorf("log output not restored after parsing")
	}
}

func TestNewickChunks(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "plain",
			input:    "(A,B,(C,D));\n(A,C,(B,D));\n",
			expected: []string{"(A,B,(C,D));", "(A,C,(B,D));"},
		},
		{
			name:     "quoted label",
			input:    "('A;1',B,(C,D));(A,B,(C,D));",
			expected: []string{"('A;1',B,(C,D));", "(A,B,(C,D));"},
		},
		{
			name:     "escaped quote",
			input:    "('it''s;',B,(C,D));(A,B,(C,D));",
			expected: []string{"('it''s;',B,(C,D));", "(A,B,(C,D));"},
		},
		{
			name:     "comment",
			input:    "(A,B,(C,D)[x;[y;]z]);\n(A,B,(C,D));",
			expected: []string{"(A,B,(C,D)[x;[y;]z]);", "(A,B,(C,D));"},
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			s := NewNewickStream(strings.NewReader(test.input))
			chunks := make([]string, 0)
			for {
				chunk, err := s.nextChunk()
				if text := strings.TrimSpace(string(chunk)); text != "" {
					chunks = append(chunks, text)
				}
				if errors.Is(err, io.EOF) {
					break
				} else if err != nil {
					t.Fatal(err)
				}
			}
			if !reflect.DeepEqual(chunks, test.expected) {
				t.Errorf("chunks %q != expected %q", chunks, test.expected)
			}
		})
	}
}

func TestNewickSemicolonInComment(t *testing.T) {
	trees, err := readAll(t, NewNewickStream(strings.NewReader("(A[x;y],B,(C,D));\n(A,B,(C,D));\n")))
	if err != nil {
		t.Fatalf("Failed with unexpected error %+v", err)
	}
	if len(trees) != 2 {
		t.Fatalf("read %d trees, expected 2", len(trees))
	}
	if n := len(tipNames(trees[0])); n != 4 {
		t.Errorf("first tree has %d tips, expected 4", n)
	}
	for _, input := range []string{"(A,B,(C,D)[x;y);\n", "('A,B,(C,D));\n"} {
		if _, err := readAll(t, NewNewickStream(strings.NewReader(input))); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("%q: expected ErrInvalidFormat, got %v", input, err)
		}
	}
}

func TestTreeFileNames(t *testing.T) {
	nex, err := OpenTreeStream("testdata/trees.nex", Nexus)
	if err != nil {
		t.Fatal(err)
	}
	defer nex.Close()
	if !reflect.DeepEqual(nex.Names(), []string{"tree1", "tree2"}) {
		t.Errorf("nexus names %v", nex.Names())
	}
	nwk, err := OpenTreeStream("testdata/trees.nwk", Newick)
	if err != nil {
		t.Fatal(err)
	}
	defer nwk.Close()
	if nwk.Names() != nil {
		t.Errorf("newick file has names %v", nwk.Names())
	}
}

func TestFormat(t *testing.T) {
	var f Format
	if err := f.Set("nexus"); err != nil || f != Nexus {
		t.Errorf("Set(\"nexus\") = %v, format %s", err, f)
	}
	if f.String() != "nexus" {
		t.Errorf("String() = %s", f)
	}
	if err := f.Set("phylip"); !errors.Is(err, ErrInvalidFormat) || !strings.Contains(err.Error(), "newick or nexus") {
		t.Errorf("expected ErrInvalidFormat naming the formats, got %v", err)
	}
	if s := Format(7).String(); s != "Format(7)" {
		t.Errorf("unknown format prints as %s", s)
	}
}

func testSystem(t *testing.T) (*gr.SplitSystem, *gr.TaxonTable) {
	t.Helper()
	taxa, err := gr.NewTaxonTableFromLabels([]string{"A", "B", "C", "D", "E"})
	if err != nil {
		t.Fatal(err)
	}
	sys := &gr.SplitSystem{
		Splits: []gr.SplitSupport{
			{Split: gr.SplitOf(5, 2, 3, 4), Support: 4},
			{Split: gr.SplitOf(5, 3, 4), Support: 3},
		},
		MaxSupport: 4,
	}
	return sys, taxa
}

func TestWriteSplitsCSV(t *testing.T) {
	sys, taxa := testSystem(t)
	var buf bytes.Buffer
	if err := WriteSplitsCSV(sys, taxa, &buf); err != nil {
		t.Fatalf("Failed with unexpected error %+v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	expected := [][]string{
		{"Split", "Support", "Frequency"},
		{"C,D,E|A,B", "4", "1"},
		{"D,E|A,B,C", "3", "0.75"},
	}
	if !reflect.DeepEqual(records, expected) {
		t.Errorf("csv %v != expected %v", records, expected)
	}
}

func TestWriteNewick(t *testing.T) {
	sys, taxa := testSystem(t)
	ct, err := gr.BuildConsensusTree(sys, taxa)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteNewick(ct, &buf); err != nil {
		t.Fatalf("Failed with unexpected error %+v", err)
	}
	out := buf.String()
	if !strings.HasSuffix(out, ";\n") || strings.Count(out, "\n") != 1 {
		t.Errorf("expected a single newick line, got %q", out)
	}
	trees, err := readAll(t, NewNewickStream(&buf))
	if err != nil || len(trees) != 1 {
		t.Fatalf("could not read back %q: %v", out, err)
	}
	splits, err := gr.SplitsFromTree(trees[0], taxa)
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) != 2 {
		t.Errorf("tree %q has %d splits, expected 2", out, len(splits))
	}
}

func TestWriteSupportPlot(t *testing.T) {
	sys, _ := testSystem(t)
	prefix := filepath.Join(t.TempDir(), "support")
	if err := WriteSupportPlot(sys, prefix); err != nil {
		t.Fatalf("Failed with unexpected error %+v", err)
	}
	if _, err := os.Stat(prefix + ".png"); err != nil {
		t.Errorf("plot not written: %s", err)
	}
	if err := WriteSupportPlot(&gr.SplitSystem{MaxSupport: 4}, prefix); !errors.Is(err, ErrWritingFile) {
		t.Errorf("expected ErrWritingFile for empty system, got %v", err)
	}
}

func TestSupportAxisMin(t *testing.T) {
	testCases := []struct {
		name     string
		supports []uint32
		expected float64
	}{
		{name: "all trees", supports: []uint32{20, 20}, expected: 50},
		{name: "majority", supports: []uint32{20, 13}, expected: 50},
		{name: "minority", supports: []uint32{20, 7}, expected: 30},
		{name: "low", supports: []uint32{1}, expected: 0},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			sys := &gr.SplitSystem{MaxSupport: 20}
			for _, s := range test.supports {
				sys.Splits = append(sys.Splits, gr.SplitSupport{Support: s})
			}
			if got := supportAxisMin(sys); got != test.expected {
				t.Errorf("axis min %v, expected %v", got, test.expected)
			}
		})
	}
}

func TestRankTicker(t *testing.T) {
	ticks := rankTicker(10).Ticks(0.5, 45.5)
	if len(ticks) != 45 || ticks[0].Value != 1 || ticks[44].Value != 45 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
	labeled := make([]string, 0)
	for _, tick := range ticks {
		if tick.Label != "" {
			labeled = append(labeled, tick.Label)
		}
	}
	expected := []string{"1", "5", "10", "15", "20", "25", "30", "35", "40", "45"}
	if !reflect.DeepEqual(labeled, expected) {
		t.Errorf("labels %v != expected %v", labeled, expected)
	}
}

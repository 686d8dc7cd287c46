package prep

import (
	"encoding/csv"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	gr "github.com/jsdoublel/consense/internal/graphs"
)

var (
	supportColor  = color.RGBA{R: 196, G: 78, B: 82, A: 255}
	majorityColor = color.Gray{Y: 120}
)

const (
	plotH = 4 * vg.Inch
	plotW = 6 * vg.Inch

	rankLabels = 10 // labeled ticks on the rank axis
)

// Writes the consensus tree as a single newick line
func WriteNewick(ct *gr.ConsensusTree, w io.Writer) error {
	if _, err := fmt.Fprintln(w, ct.Newick()); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}

// Writes one row per selected split, in selection order, under the header
// "Split", "Support", "Frequency".
func WriteSplitsCSV(sys *gr.SplitSystem, taxa *gr.TaxonTable, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Split", "Support", "Frequency"}); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	for i, ss := range sys.Splits {
		row := []string{
			ss.Split.Format(taxa),
			strconv.FormatUint(uint64(ss.Support), 10),
			strconv.FormatFloat(sys.Frequency(i), 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("%w, split %d: %s", ErrWritingFile, i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}

// Ticks at every split rank from 1, labeling roughly rankLabels of them
type rankTicker int

func (r rankTicker) Ticks(_, hi float64) []plot.Tick {
	n := int(hi)
	step := max(1, int(math.Ceil(float64(n)/float64(r))))
	ticks := make([]plot.Tick, 0, n)
	for rank := 1; rank <= n; rank++ {
		tick := plot.Tick{Value: float64(rank)}
		if rank == 1 || rank%step == 0 {
			tick.Label = strconv.Itoa(rank)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

// Lower bound of the support axis: the lowest frequency rounded down to a
// multiple of 10 percent, and never above 50 so the majority line shows.
func supportAxisMin(sys *gr.SplitSystem) float64 {
	lowest := 100.0
	for i := range sys.Splits {
		lowest = min(lowest, 100*sys.Frequency(i))
	}
	return min(10*math.Floor(lowest/10), 50)
}

// Plots the support (percent of trees) of each selected split by selection
// rank to <prefix>.png, with the 50% majority line for reference.
func WriteSupportPlot(sys *gr.SplitSystem, prefix string) error {
	if sys.Len() == 0 {
		return fmt.Errorf("%w, no splits to plot", ErrWritingFile)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Consensus split support (%d trees)", sys.MaxSupport)
	p.X.Label.Text = "Selection rank"
	p.Y.Label.Text = "Support (% of trees)"
	p.X.Min = 0.5
	p.X.Max = float64(sys.Len()) + 0.5
	p.X.Tick.Marker = rankTicker(rankLabels)
	p.Y.Min = supportAxisMin(sys)
	p.Y.Max = 100

	pts := make(plotter.XYs, sys.Len())
	for i := range sys.Splits {
		pts[i].X = float64(i + 1)
		pts[i].Y = 100 * sys.Frequency(i)
	}
	points, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	points.Color = supportColor
	points.Shape = draw.CircleGlyph{}
	points.Radius = vg.Points(3)

	majority := plotter.NewFunction(func(float64) float64 { return 50 })
	majority.Color = majorityColor
	majority.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(plotter.NewGrid(), majority, points)
	if err := p.Save(plotW, plotH, prefix+".png"); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}

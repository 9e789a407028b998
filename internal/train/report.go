package train

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// column is one optional column of the epoch table.
type column struct {
	name  string
	value func(EpochStats) string
	shown func(EpochStats) bool
}

func metric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

var columns = []column{
	{"LOSS", func(s EpochStats) string { return metric(s.Loss) }, func(s EpochStats) bool { return !math.IsNaN(s.Loss) }},
	{"ACCURACY", func(s EpochStats) string { return fmt.Sprintf("%.1f%%", 100*s.Accuracy) }, func(s EpochStats) bool { return !math.IsNaN(s.Accuracy) }},
	{"VAL LOSS", func(s EpochStats) string { return metric(s.ValLoss) }, func(s EpochStats) bool { return !math.IsNaN(s.ValLoss) }},
	{"VAL ACCURACY", func(s EpochStats) string { return fmt.Sprintf("%.1f%%", 100*s.ValAccuracy) }, func(s EpochStats) bool { return !math.IsNaN(s.ValAccuracy) }},
	{"DISC LOSS", func(s EpochStats) string { return metric(s.DiscLoss) }, func(s EpochStats) bool { return !math.IsNaN(s.DiscLoss) }},
	{"ACTIVE", func(s EpochStats) string { return strconv.Itoa(s.Active) }, func(s EpochStats) bool { return s.Active >= 0 }},
}

// RenderEpochs writes stats as a table. Columns without a value in any
// epoch are omitted.
func RenderEpochs(w io.Writer, stats []EpochStats) {
	var shown []column
	for _, c := range columns {
		for _, s := range stats {
			if c.shown(s) {
				shown = append(shown, c)
				break
			}
		}
	}

	header := []string{"EPOCH"}
	for _, c := range shown {
		header = append(header, c.name)
	}
	header = append(header, "TIME")

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		row := []string{strconv.Itoa(s.Epoch)}
		for _, c := range shown {
			v := "-"
			if c.shown(s) {
				v = c.value(s)
			}
			row = append(row, v)
		}
		row = append(row, s.Duration.Round(time.Millisecond).String())
		rows = append(rows, row)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
}

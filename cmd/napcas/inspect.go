package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/napcas-ml/napcas/internal/checkpoint"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect CHECKPOINT",
		Short: "Show the header and tensors of a .napc checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectHandler,
	}
	cmd.Flags().Bool("stats", false, "Show min, max and mean of every tensor")
	return cmd
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	r, err := checkpoint.Open(args[0], checkpoint.ValidationStrict)
	if err != nil {
		return err
	}
	defer r.Close()
	withStats, _ := cmd.Flags().GetBool("stats")
	return showCheckpoint(r, withStats, cmd.OutOrStdout())
}

func showCheckpoint(r *checkpoint.Reader, withStats bool, w io.Writer) error {
	h := r.Header()
	tableRender := func(header string, rows [][]string) {
		fmt.Fprintln(w, " ", header)
		table := tablewriter.NewWriter(w)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(rows)
		table.Render()
		fmt.Fprintln(w)
	}

	var flags []string
	for _, f := range []struct {
		bit  uint32
		name string
	}{
		{checkpoint.FlagHasOptimizer, "optimizer"},
		{checkpoint.FlagHasMetadata, "metadata"},
		{checkpoint.FlagHasMasks, "masks"},
	} {
		if r.Flags()&f.bit != 0 {
			flags = append(flags, f.name)
		}
	}
	model := [][]string{
		{"", "type", h.ModelType},
		{"", "format", strconv.Itoa(h.FormatVersion)},
		{"", "written by", h.NapcasVersion},
		{"", "created", h.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		{"", "data", fmt.Sprintf("%d bytes", r.DataSize())},
	}
	if len(flags) > 0 {
		model = append(model, []string{"", "contents", strings.Join(flags, ", ")})
	}
	tableRender("Model", model)

	if m := h.CheckpointMeta; m != nil {
		rows := [][]string{
			{"", "epoch", strconv.Itoa(m.Epoch)},
			{"", "step", strconv.FormatInt(m.Step, 10)},
			{"", "loss", strconv.FormatFloat(m.Loss, 'f', 4, 64)},
		}
		if m.OptimizerType != "" {
			rows = append(rows, []string{"", "optimizer", m.OptimizerType})
		}
		keys := make([]string, 0, len(m.OptimizerConfig))
		for k := range m.OptimizerConfig {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, []string{"", "  " + k, strconv.FormatFloat(m.OptimizerConfig[k], 'g', -1, 64)})
		}
		tableRender("Checkpoint", rows)
	}

	if len(h.Metadata) > 0 {
		keys := make([]string, 0, len(h.Metadata))
		for k := range h.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{"", k, h.Metadata[k]})
		}
		tableRender("Metadata", rows)
	}

	rows := make([][]string, 0, len(h.Tensors))
	for _, meta := range h.Tensors {
		row := []string{"", meta.Name, fmt.Sprint(meta.Shape)}
		if withStats {
			t, err := r.Tensor(meta.Name)
			if err != nil {
				return err
			}
			if d := t.Data(); len(d) > 0 {
				row = append(row,
					"min "+strconv.FormatFloat(floats.Min(d), 'g', 4, 64),
					"max "+strconv.FormatFloat(floats.Max(d), 'g', 4, 64),
					"mean "+strconv.FormatFloat(floats.Sum(d)/float64(len(d)), 'g', 4, 64))
			}
		}
		rows = append(rows, row)
	}
	tableRender("Tensors", rows)
	return nil
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/fpn/internal/fpn"
)

func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which layers run for a configuration",
		Args:  cobra.NoArgs,
		RunE:  planHandler,
	}
	addNetworkFlags(cmd)
	return cmd
}

func planHandler(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	plan, err := fpn.NewPlan(cfg.Depth())
	if err != nil {
		return err
	}

	var data [][]string
	for i, n := range plan.Nodes() {
		inputs := append([]string(nil), n.Inputs...)
		for _, opt := range n.Optional {
			if plan.Enabled(opt) {
				inputs = append(inputs, opt)
			}
		}
		data = append(data, []string{strconv.Itoa(i + 1), n.Name, n.Layer, strings.Join(inputs, ", ")})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "depth %d, returning [%s]\n\n", cfg.Depth(), levelNames(cfg.Window()))

	table := newTable(out, []string{"STEP", "VALUE", "LAYER", "INPUTS"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

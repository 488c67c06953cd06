package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewShapesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "Predict the shape of each returned level",
		Args:  cobra.NoArgs,
		RunE:  shapesHandler,
	}
	addNetworkFlags(cmd)
	cmd.Flags().Int("batch", 1, "Batch size")
	cmd.Flags().Int("height", 600, "Input height")
	cmd.Flags().Int("width", 300, "Input width")
	return cmd
}

func shapesHandler(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	batch, _ := cmd.Flags().GetInt("batch")
	height, _ := cmd.Flags().GetInt("height")
	width, _ := cmd.Flags().GetInt("width")
	if batch <= 0 || height <= 0 || width <= 0 {
		return fmt.Errorf("batch, height and width must be positive, got %d, %d, %d", batch, height, width)
	}

	shapes, err := cfg.OutputShapes(batch, height, width)
	if err != nil {
		return err
	}

	var data [][]string
	for _, ls := range shapes {
		shape := "absent"
		if ls.Shape != nil {
			shape = fmt.Sprint([]int(ls.Shape))
		}
		data = append(data, []string{ls.ID.String(), strconv.Itoa(ls.ID.Stride()), shape})
	}

	table := newTable(cmd.OutOrStdout(), []string{"LEVEL", "STRIDE", "SHAPE"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

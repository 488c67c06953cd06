package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/fpn/internal/fpn"
	"github.com/born-ml/fpn/internal/imageio"
	"github.com/born-ml/fpn/internal/tensor"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run IMAGE [IMAGE...]",
		Short: "Compute feature pyramids for images and save them as .npy",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runHandler,
	}
	addNetworkFlags(cmd)
	cmd.Flags().StringP("out", "o", ".", "Output directory")
	cmd.Flags().Bool("half", false, "Store feature maps as float16")
	cmd.Flags().Bool("heatmap", false, "Also render each level's channel mean as a PNG heatmap")
	cmd.Flags().Int("resize-height", 0, "Resize input to this height (with --resize-width)")
	cmd.Flags().Int("resize-width", 0, "Resize input to this width (with --resize-height)")
	cmd.Flags().IntP("jobs", "j", 2, "Images processed concurrently")
	return cmd
}

type savedLevel struct {
	image string
	level fpn.LevelID
	shape tensor.Shape
	path  string
}

func runHandler(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	outDir, _ := flags.GetString("out")
	half, _ := flags.GetBool("half")
	heatmap, _ := flags.GetBool("heatmap")
	jobs, _ := flags.GetInt("jobs")

	opts := imageio.DefaultOptions()
	opts.Height, _ = flags.GetInt("resize-height")
	opts.Width, _ = flags.GetInt("resize-width")

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	backend := newBackend()
	start := time.Now()
	net, err := fpn.New(cfg, backend)
	if err != nil {
		return err
	}
	slog.Debug("network ready", "elapsed", time.Since(start), "parameters", net.NumParameters())

	var mu sync.Mutex
	var saved []savedLevel

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(jobs, 1))
	for _, path := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, err := imageio.Load(path)
			if err != nil {
				return err
			}
			data, h, w := imageio.Preprocess(img, opts)
			x, err := tensor.FromSlice(data, tensor.Shape{1, 3, h, w}, backend)
			if err != nil {
				return err
			}

			start := time.Now()
			levels, err := net.Forward(x)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			slog.Info("computed pyramid", "image", path, "height", h, "width", w, "elapsed", time.Since(start))

			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			for _, l := range levels {
				fm, ok := l.FeatureMap()
				if !ok {
					slog.Warn("level not computed, skipping", "image", path, "level", l.ID())
					continue
				}
				out := filepath.Join(outDir, fmt.Sprintf("%s_%s.npy", base, l.ID()))
				if err := imageio.SaveNPY(out, fm.Shape(), fm.Data(), half); err != nil {
					return err
				}
				if heatmap {
					heatPath := strings.TrimSuffix(out, ".npy") + ".png"
					title := fmt.Sprintf("%s %s", base, l.ID())
					if err := imageio.SaveHeatmap(heatPath, title, fm.Shape(), fm.Data()); err != nil {
						return err
					}
				}

				mu.Lock()
				saved = append(saved, savedLevel{image: path, level: l.ID(), shape: fm.Shape(), path: out})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(saved, func(i, j int) bool {
		if saved[i].image != saved[j].image {
			return saved[i].image < saved[j].image
		}
		return saved[i].level < saved[j].level
	})

	var data [][]string
	for _, s := range saved {
		data = append(data, []string{s.image, s.level.String(), fmt.Sprint([]int(s.shape)), s.path})
	}

	table := newTable(cmd.OutOrStdout(), []string{"IMAGE", "LEVEL", "SHAPE", "FILE"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/fpn/internal/backend/cpu"
	"github.com/born-ml/fpn/internal/envconfig"
	"github.com/born-ml/fpn/internal/fpn"
	"github.com/born-ml/fpn/internal/logutil"
)

const version = "v0.1.0"

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fpn",
		Short: "Feature pyramid network runner",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			level := envconfig.LogLevel()
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && level > slog.LevelDebug {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), level))
			slog.Debug("fpn config", "env", envconfig.Values())
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log network construction details")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewPlanCmd(),
		NewShapesCmd(),
		NewRunCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fpn version %s\n", version)
		},
	}
}

// addNetworkFlags registers the flags shared by every command that builds
// or describes a network.
func addNetworkFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("preset", "50", fmt.Sprintf("Backbone depth preset (%s)", strings.Join(fpn.PresetNames(), ", ")))
	flags.Int("num-layers", fpn.DefaultNumLayers, "Number of pyramid levels to return")
	flags.Int("num-fpn-layers", 0, "Number of pyramid levels to compute (raised to --num-layers)")
	flags.Int("fpn-skip-layers", 0, "Index of the first returned level (0 = p3)")
	flags.Bool("compat", false, "Clip out-of-range windows and return zero scalars for absent levels")
	flags.Int("base-width", fpn.DefaultBaseWidth, "Stem width")
	flags.Int("channels", fpn.DefaultChannels, "Pyramid channel width")
	flags.Int64("seed", 0, "Weight initialization seed")

	appendEnvDocs(cmd, envconfig.AsMap())
}

// appendEnvDocs lists the environment variables a command honours at the end
// of its usage text.
func appendEnvDocs(cmd *cobra.Command, envs map[string]envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "      %-18s %s\n", envs[name].Name, envs[name].Description)
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + sb.String())
}

func configFromFlags(cmd *cobra.Command) (fpn.Config, error) {
	flags := cmd.Flags()

	preset, _ := flags.GetString("preset")
	blocks, err := fpn.PresetBlocks(preset)
	if err != nil {
		return fpn.Config{}, err
	}

	cfg := fpn.DefaultConfig(blocks)
	cfg.NumLayers, _ = flags.GetInt("num-layers")
	cfg.NumFPNLayers, _ = flags.GetInt("num-fpn-layers")
	cfg.FPNSkipLayers, _ = flags.GetInt("fpn-skip-layers")
	cfg.Compat, _ = flags.GetBool("compat")
	cfg.BaseWidth, _ = flags.GetInt("base-width")
	cfg.Channels, _ = flags.GetInt("channels")
	cfg.Seed, _ = flags.GetInt64("seed")

	return cfg, cfg.Validate()
}

func newBackend() *cpu.CPUBackend {
	return cpu.NewWithWorkers(envconfig.NumThreads)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func levelNames(ids []fpn.LevelID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return strings.Join(names, " ")
}

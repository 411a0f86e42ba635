package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bibwatch/internal/pipeline"
	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// detectCmd runs detection once over files and directories, without the
// collector or uploads.
var detectCmd = &cobra.Command{
	Use:   "detect [path...]",
	Short: "Detect bib numbers in images and directories once",
	Long: `Run the detection pipeline over the given images and directories (the
watch directory when none are given) and print the numbers found per image.

With --out every image gets a sub-directory holding an output.txt summary.

Examples:
  bibwatch detect photo.jpg
  bibwatch detect /srv/photos -t 4 -o out`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().IntP("threads", "t", pipeline.MinWorkers, "number of worker threads (1-10)")
	detectCmd.Flags().StringP("out", "o", "", "directory for per-image output")
	detectCmd.Flags().Bool("save-crops", false, "also write every rectified region to the output directory")
	detectCmd.Flags().Bool("progress", true, "show a progress bar on stderr")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	logger := slog.Default()

	if cmd.Flags().Changed("threads") {
		cfg.Pipeline.Workers, _ = cmd.Flags().GetInt("threads")
	}
	if cmd.Flags().Changed("out") {
		cfg.Pipeline.OutputDir, _ = cmd.Flags().GetString("out")
	}
	if cmd.Flags().Changed("save-crops") {
		cfg.Pipeline.SaveCrops, _ = cmd.Flags().GetBool("save-crops")
	}
	if err := cfg.Pipeline.ToPipelineConfig().Validate(); err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{cfg.Watch.Dir}
	}
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if show, _ := cmd.Flags().GetBool("progress"); show {
		opts = append(opts, pipeline.WithProgress(pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "")))
	}
	p, release, err := buildPipeline(&cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer release()
	defer func() { _ = p.Close() }()

	found := p.DetectBatch(cmd.Context(), paths)
	printDetections(cmd.OutOrStdout(), paths, found, p.Stats())
	return nil
}

// expandPaths replaces directories by the images directly inside them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		imgs, err := utils.ListImages(a)
		if err != nil {
			return nil, err
		}
		paths = append(paths, imgs...)
	}
	return paths, nil
}

func printDetections(w io.Writer, paths []string, found map[string][]int, stats pipeline.Stats) {
	keys := make([]string, 0, len(found))
	for k := range found {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if nums := found[k]; len(nums) > 0 {
			_, _ = fmt.Fprintf(w, "%s: %s\n", k, result.FormatNumbers(nums))
		} else {
			_, _ = fmt.Fprintf(w, "%s: -\n", k)
		}
	}
	if failed := len(paths) - len(found); failed > 0 {
		_, _ = fmt.Fprintf(w, "%d images could not be processed\n", failed)
	}
	_, _ = fmt.Fprintf(w, "Processed %d images with %d images where at least 1 bib number was found (%.1f%%)\n",
		stats.Processed, stats.WithNumbers, stats.Percent())
}

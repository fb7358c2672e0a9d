package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sketchforge/internal/config"
	"sketchforge/internal/fileutil"
	"sketchforge/internal/imageio"
	"sketchforge/internal/pipeline"
	"sketchforge/internal/services/gradio"
)

type promptFlags struct {
	prompt         string
	negativePrompt string
	outDir         string
	noDownload     bool
	quiet          bool
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "Prompt for the image stage")
	cmd.Flags().StringVarP(&f.negativePrompt, "negative-prompt", "n", "", "Negative prompt for the image stage")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "Directory for downloaded results (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&f.noDownload, "no-download", false, "Leave the final image on the service")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Suppress per-stage progress lines")
}

func (f *promptFlags) request(path string) (pipeline.Request, error) {
	tex, err := imageio.Load(path)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("load sketch %s: %w", path, err)
	}
	return pipeline.Request{
		Image:          tex,
		Prompt:         f.prompt,
		NegativePrompt: f.negativePrompt,
		Source:         path,
	}, nil
}

func (f *promptFlags) outputDir(cfg *config.Config) (string, error) {
	dir := strings.TrimSpace(f.outDir)
	if dir == "" {
		return cfg.Paths.OutputDir, nil
	}
	return config.ExpandPath(dir)
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:   "generate <sketch>",
		Short: "Run one sketch through every stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			app, err := ctx.openApp(cmd, flags.quiet)
			if err != nil {
				return err
			}
			defer app.Close()

			run, err := app.controller.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session: %s\n", run.SessionHash)
			fmt.Fprintf(out, "Result:  %s\n", run.FinalURL)
			if flags.noDownload {
				return nil
			}
			dir, err := flags.outputDir(app.cfg)
			if err != nil {
				return fmt.Errorf("resolve output dir: %w", err)
			}
			saved, err := saveResult(cmd.Context(), app.client, run, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved:   %s\n", saved)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// saveResult downloads the final image as <sketch>-<session>.png in dir.
func saveResult(ctx context.Context, client *gradio.Client, run *pipeline.Run, dir string) (string, error) {
	if run == nil || run.FinalPath == "" {
		return "", errors.New("run has no final image")
	}
	base := strings.TrimSuffix(filepath.Base(run.Source), filepath.Ext(run.Source))
	if base == "" || base == "." {
		base = "sketch"
	}
	target := filepath.Join(dir, fmt.Sprintf("%s-%s%s", base, run.SessionHash, resultExt(run.FinalPath)))

	err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		_, err := client.Download(ctx, run.FinalPath, w)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("download result: %w", err)
	}
	return target, nil
}

func resultExt(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".png"
}

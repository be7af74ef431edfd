package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/skinup/pkg/app"
	"github.com/osvaldoandrade/skinup/pkg/domain"
)

type runFlags struct {
	visibility  string
	variant     string
	name        string
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	output      string
	jsonOut     bool
}

func (f *runFlags) register(cmd *cobra.Command, form bool) {
	if form {
		cmd.Flags().StringVar(&f.visibility, "visibility", "", "Skin visibility: public|unlisted|private")
		cmd.Flags().StringVar(&f.variant, "variant", "", "Skin variant: classic|slim|unknown")
		cmd.Flags().StringVar(&f.name, "name", "", "Optional skin name")
	}
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Pause before each poll (default 1s)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "Give up after this many polls (0 = unbounded)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Give up after this long (0 = no deadline)")
	cmd.Flags().StringVar(&f.output, "output", "", "Also write the artifact as JSON to this file")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the artifact as JSON")
}

func (f *runFlags) apply(cmd *cobra.Command, g *globals) {
	flags := cmd.Flags()
	cfg := g.cfg
	if flags.Changed("visibility") {
		cfg.Visibility = f.visibility
	}
	if flags.Changed("variant") {
		cfg.Variant = f.variant
	}
	if flags.Changed("name") {
		cfg.Name = f.name
	}
	if flags.Changed("interval") && f.interval > 0 {
		cfg.PollIntervalMillis = int(f.interval / time.Millisecond)
	}
	if flags.Changed("max-attempts") {
		cfg.MaxPollAttempts = f.maxAttempts
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = int((f.timeout + time.Second - 1) / time.Second)
	}
}

func uploadCmd(g *globals, ui *ui) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:     "upload <path>",
		Short:   "Upload a skin PNG and wait for the texture",
		Example: "skinup upload ./steve.png --variant slim",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				return fmt.Errorf("file not found: %s", path)
			}
			return execute(cmd, g, f, ui, path, func(ctx context.Context, application *app.Application, key string) (domain.Artifact, error) {
				return application.Tracker.Run(ctx, path, key)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func waitCmd(g *globals, ui *ui) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:     "wait <job-id>",
		Short:   "Wait for a previously queued job",
		Example: "skinup wait 6a1f0c2e9b --timeout 2m",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := domain.JobHandle(args[0])
			return execute(cmd, g, f, ui, job.String(), func(ctx context.Context, application *app.Application, key string) (domain.Artifact, error) {
				return application.Tracker.Resume(ctx, job, key)
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

type workflow func(ctx context.Context, application *app.Application, key string) (domain.Artifact, error)

func execute(cmd *cobra.Command, g *globals, f *runFlags, ui *ui, source string, run workflow) error {
	f.apply(cmd, g)
	if err := g.cfg.Validate(); err != nil {
		return err
	}
	key, err := requireCredential(g.cfg)
	if err != nil {
		return err
	}

	var progress io.Writer = os.Stdout
	if f.jsonOut {
		progress = os.Stderr
	}
	console := newConsoleNotifier(progress, ui, g.cfg.MaxPollAttempts)

	ctx := cmd.Context()
	application, err := app.NewApplication(ctx, g.cfg, app.WithNotifier(console))
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	app.SetupMappings(application)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Close(shutdownCtx)
	}()
	if addr, err := application.StartStatusServer(); err != nil {
		return fmt.Errorf("status server: %w", err)
	} else if addr != "" {
		fmt.Fprintf(os.Stderr, "%s Status: http://%s/v1/skinup/status\n", ui.dim("[INFO]"), addr)
	}

	art, err := run(ctx, application, key)
	if err != nil {
		return err
	}

	if f.output != "" || g.cfg.OutputDir != "" {
		url, err := application.SaveArtifact(ctx, f.output, source, art)
		if err != nil {
			return domain.NewError("save", domain.KindIO, err)
		}
		fmt.Fprintf(progress, "%s %s\n", ui.warn("Saved:"), url)
	}
	return printArtifact(os.Stdout, ui, art, f.jsonOut)
}

func printArtifact(w io.Writer, ui *ui, a domain.Artifact, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	fmt.Fprintln(w, ui.warn("Texture:"), a.Texture)
	fmt.Fprintln(w, ui.warn("Signature:"), a.Signature)
	return nil
}

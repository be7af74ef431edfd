package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/skinup/pkg/config"
	"github.com/osvaldoandrade/skinup/pkg/domain"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen).SprintFunc(),
		info:  color.New(color.FgBlue).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

// globals holds the persistent flags and the config they resolve to.
type globals struct {
	configPath string
	baseURL    string
	apiKey     string
	logLevel   string
	logFormat  string
	statusAddr string

	cfg *config.Config
}

func main() {
	ui := newUI()
	g := &globals{}

	root := &cobra.Command{
		Use:   "skinup",
		Short: "MineSkin uploader",
		Long:  "skinup uploads a skin PNG to MineSkin and waits for the signed texture.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "MineSkin API base URL")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", "", "MineSkin API key (overrides MINESKIN_API_KEY)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text|json")
	root.PersistentFlags().StringVar(&g.statusAddr, "status-addr", "", "Serve /healthz, /metrics and /v1/skinup/status on this address")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(g.configPath) == "" {
			g.configPath = config.DefaultPath()
		}
		cfg, err := config.LoadConfigOptional(g.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		flags := cmd.Flags()
		if flags.Changed("base-url") {
			cfg.BaseURL = strings.TrimSpace(g.baseURL)
		}
		if flags.Changed("api-key") {
			cfg.APIKey = strings.TrimSpace(g.apiKey)
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = g.logLevel
		}
		if flags.Changed("log-format") {
			cfg.LogFormat = g.logFormat
		}
		if flags.Changed("status-addr") {
			cfg.StatusAddr = g.statusAddr
		}
		g.cfg = cfg
		return nil
	}

	root.AddCommand(uploadCmd(g, ui))
	root.AddCommand(waitCmd(g, ui))
	root.AddCommand(initCmd(g, ui))
	root.AddCommand(authCmd(g, ui))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error kind to the process exit status.
func exitCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindIO:
		return 2
	case domain.KindNetwork:
		return 3
	case domain.KindProtocol:
		return 4
	case domain.KindRemoteJob:
		return 5
	case domain.KindTimeout:
		return 6
	case domain.KindCanceled:
		return 130
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

// requireCredential returns the API key or the precondition error shown when
// none is configured.
func requireCredential(cfg *config.Config) (string, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return "", errors.New("MINESKIN_API_KEY must be set (or run `skinup auth set`)")
	}
	return key, nil
}

func helpTemplate(ui *ui) string {
	title := ui.title("skinup")
	return fmt.Sprintf(`%s — MineSkin uploader

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  skinup auth set
  skinup upload ./steve.png
  skinup upload ./alex.png --variant slim --output alex.json
  skinup wait 6a1f0c2e9b

`, title, config.DefaultPath())
}

func maskToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "<unset>"
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func emptyOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

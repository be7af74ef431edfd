package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/osvaldoandrade/skinup/pkg/config"
)

func initCmd(g *globals, ui *ui) *cobra.Command {
	var (
		visibility string
		variant    string
		noPrompt   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := config.LoadFile(g.configPath)
			if err != nil {
				return err
			}
			baseURL := firstNonEmpty(g.baseURL, stored.BaseURL, config.DefaultBaseURL)
			apiKey := strings.TrimSpace(g.apiKey)
			visibility = firstNonEmpty(visibility, stored.Visibility, "public")
			variant = firstNonEmpty(variant, stored.Variant, "classic")

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "MineSkin base URL", baseURL)
				visibility = prompt(reader, "Visibility (public|unlisted|private)", visibility)
				variant = prompt(reader, "Variant (classic|slim|unknown)", variant)
				if apiKey == "" && stored.APIKey == "" {
					k, err := promptSecret("API key (optional)")
					if err != nil {
						return err
					}
					apiKey = k
				}
			}

			stored.BaseURL = strings.TrimSpace(baseURL)
			stored.Visibility = strings.TrimSpace(visibility)
			stored.Variant = strings.TrimSpace(variant)
			if apiKey != "" {
				stored.APIKey = strings.TrimSpace(apiKey)
			}
			if err := validateStored(stored); err != nil {
				return err
			}
			if err := stored.Save(g.configPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized config at %s\n", ui.ok("[OK]"), g.configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&visibility, "visibility", "", "Default visibility")
	cmd.Flags().StringVar(&variant, "variant", "", "Default variant")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func authCmd(g *globals, ui *ui) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored API key",
	}

	var key string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the API key in config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				k, err := promptSecret("API key")
				if err != nil {
					return err
				}
				key = k
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("api key is required")
			}
			stored, err := config.LoadFile(g.configPath)
			if err != nil {
				return err
			}
			stored.APIKey = strings.TrimSpace(key)
			if err := stored.Save(g.configPath); err != nil {
				return err
			}
			fmt.Printf("%s API key stored in %s\n", ui.ok("[OK]"), g.configPath)
			return nil
		},
	}
	set.Flags().StringVar(&key, "key", "", "API key (prompted when omitted)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings (key masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			source := "config"
			switch {
			case cmd.Flags().Changed("api-key"):
				source = "flag"
			case strings.TrimSpace(os.Getenv("MINESKIN_API_KEY")) != "":
				source = "env"
			case cfg.APIKey == "":
				source = "none"
			}
			fmt.Printf("%s Config: %s\n", ui.title("skinup"), g.configPath)
			fmt.Printf("%s Base URL:   %s\n", ui.info("•"), cfg.BaseURL)
			fmt.Printf("%s API Key:    %s (%s)\n", ui.info("•"), maskToken(cfg.APIKey), source)
			fmt.Printf("%s Visibility: %s\n", ui.info("•"), cfg.Visibility)
			fmt.Printf("%s Variant:    %s\n", ui.info("•"), cfg.Variant)
			fmt.Printf("%s Name:       %s\n", ui.info("•"), emptyOr(cfg.Name, "<unset>"))
			fmt.Printf("%s Output dir: %s\n", ui.info("•"), emptyOr(cfg.OutputDir, "<unset>"))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := config.LoadFile(g.configPath)
			if err != nil {
				return err
			}
			stored.APIKey = ""
			if err := stored.Save(g.configPath); err != nil {
				return err
			}
			fmt.Printf("%s API key cleared from %s\n", ui.ok("[OK]"), g.configPath)
			return nil
		},
	}

	auth.AddCommand(set, show, clearCmd)
	return auth
}

// validateStored checks a partially filled config the way it will be used.
func validateStored(stored *config.Config) error {
	probe := *stored
	if probe.LogFormat == "" {
		probe.LogFormat = "text"
	}
	return probe.Validate()
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	b, err := readSecret()
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readSecret() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		return []byte(strings.TrimSpace(line)), err
	}
	return term.ReadPassword(fd)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/daemon"
	"github.com/leonardotrapani/hyprscribe/internal/deps"
	"github.com/leonardotrapani/hyprscribe/internal/language"
	"github.com/leonardotrapani/hyprscribe/internal/logging"
	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/pipeline"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/wav"
)

var (
	configPath string
	noColor    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hyprscribe",
	Short: "Continuous meeting transcription for Wayland/Hyprland",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
		loadEnv()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/hyprscribe/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		statusCmd(),
		versionCmd(),
		stopCmd(),
		transcribeCmd(),
		doctorCmd(),
	)
}

// loadEnv reads API keys from ./.env and the config directory's .env.
// Variables already set in the environment win.
func loadEnv() {
	files := []string{".env"}
	if p, err := resolveConfigPath(); err == nil {
		files = append(files, filepath.Join(filepath.Dir(p), ".env"))
	}
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			log.Debug("Loaded environment file", "path", f)
		}
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// loadConfig reads the config once; a missing file yields defaults.
func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}
	return mgr.GetConfig(), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManager(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := mgr.GetConfig()
			if err := logging.Init(cfg.ToLoggingConfig(), nil); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config %s: %w", mgr.Path(), err)
			}
			mgr.OnChange(func(c *config.Config) {
				if err := logging.Init(c.ToLoggingConfig(), nil); err != nil {
					log.Warn("Config: keeping previous log settings", "err", err)
				}
			})

			return daemon.New(mgr).Run()
		},
	}
}

func controlCmd(use, short string, cmdByte byte) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(cmdByte)
			if err != nil {
				return fmt.Errorf("daemon not reachable (is `hyprscribe serve` running?): %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), resp)
			if strings.HasPrefix(resp, "ERR") {
				return errors.New(strings.TrimSpace(resp))
			}
			return nil
		},
	}
}

func toggleCmd() *cobra.Command {
	return controlCmd("toggle", "Start or stop a recording session", bus.CmdToggle)
}

func statusCmd() *cobra.Command {
	return controlCmd("status", "Get current recording status", bus.CmdStatus)
}

func versionCmd() *cobra.Command {
	return controlCmd("version", "Get protocol version", bus.CmdVersion)
}

func stopCmd() *cobra.Command {
	return controlCmd("stop", "Stop the daemon", bus.CmdQuit)
}

func transcribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Upload one WAV file to the configured transcription service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logging.Init(cfg.ToLoggingConfig(), nil); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTranscribe(ctx, cmd.OutOrStdout(), cfg, args[0])
		},
	}
}

func runTranscribe(ctx context.Context, w io.Writer, cfg *config.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format, pcmLen, err := wav.Probe(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	container, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	client, err := pipeline.NewTranscriptionClient(cfg, metrics.NewUnregistered(), nil)
	if err != nil {
		return err
	}

	seconds := float64(pcmLen) / float64(format.ByteRate())
	log.Info("Transcribing file", "path", path, "format", format, "seconds", fmt.Sprintf("%.1f", seconds))

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result := client.Transcribe(ctx, id, container, time.Now())
	if result.Text == "" {
		return fmt.Errorf("no transcription returned for %s", path)
	}
	fmt.Fprintln(w, result.Text)
	return nil
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if !runDoctor(cmd.OutOrStdout(), p) {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}

// runDoctor prints a checklist and reports whether everything required is in
// place.
func runDoctor(w io.Writer, cfgPath string) bool {
	healthy := true

	fmt.Fprintln(w, styleHeader.Render("Configuration"))
	cfg, err := config.LoadFile(cfgPath)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		fmt.Fprintf(w, "  %s no config at %s, using defaults\n", warnMark(), styleMuted.Render(cfgPath))
		cfg = config.DefaultConfig()
	case err != nil:
		fmt.Fprintf(w, "  %s %v\n", failMark(), err)
		return false
	default:
		fmt.Fprintf(w, "  %s loaded %s\n", okMark(), styleMuted.Render(cfgPath))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "  %s %v\n", failMark(), err)
		healthy = false
	} else {
		fmt.Fprintf(w, "  %s valid (transcription: %s, language: %s, backend: %s)\n",
			okMark(), cfg.Transcription.Provider, language.Label(cfg.Transcription.Language), cfg.Recording.Backend)
	}

	fmt.Fprintln(w, styleHeader.Render("Recording backends"))
	fmt.Fprintf(w, "  %s compiled in: %s\n", okMark(), strings.Join(recording.Backends(), ", "))

	fmt.Fprintln(w, styleHeader.Render("External tools"))
	for _, tool := range deps.Tools {
		status := deps.Check(tool.Name, tool.VersionArg)
		required := tool.Required && cfg.Recording.Backend != recording.BackendPortAudio
		switch {
		case status.Installed:
			fmt.Fprintf(w, "  %s %s %s\n", okMark(), tool.Name, styleMuted.Render(status.Version))
		case required:
			fmt.Fprintf(w, "  %s %s missing: %s\n", failMark(), tool.Name, tool.Description)
			healthy = false
		default:
			fmt.Fprintf(w, "  %s %s missing: %s\n", warnMark(), tool.Name, tool.Description)
		}
	}

	fmt.Fprintln(w, styleHeader.Render("Daemon"))
	if resp, err := bus.SendCommand(bus.CmdStatus); err == nil {
		fmt.Fprintf(w, "  %s running, %s", okMark(), resp)
	} else {
		fmt.Fprintf(w, "  %s not running\n", warnMark())
	}

	return healthy
}

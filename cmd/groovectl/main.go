// Package main is the entry point for the groovectl CLI
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/james-see/groovectl/pkg/api"
	"github.com/james-see/groovectl/pkg/config"
	"github.com/james-see/groovectl/pkg/miditap"
	"github.com/james-see/groovectl/pkg/tempo"
	"github.com/james-see/groovectl/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	logLevel   string
	serverPort int
	midiPort   string
	midiChan   int
	withMIDI   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "groovectl",
	Short: "Tempo and swing control for step sequencers",
	Long: `groovectl owns a sequencer's tempo and swing: it clamps and validates
every change, glides large tempo jumps, and derives tempo from taps.

Examples:
  groovectl tui
  groovectl serve --port 8080
  groovectl tap --midi-port "Launchpad X LPX MIDI"
  groovectl validate tempo 250
  groovectl presets`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "Derive tempo from note-ons on a MIDI input",
	RunE:  runTap,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input ports",
	RunE:  runPorts,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List groove and MPC swing presets",
	RunE:  runPresets,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a tempo or swing value without applying it",
}

var validateTempoCmd = &cobra.Command{
	Use:   "tempo <bpm>",
	Short: "Check a tempo in BPM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args[0], tempo.TempoValidationError)
	},
}

var validateSwingCmd = &cobra.Command{
	Use:   "swing <amount>",
	Short: "Check a swing fraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args[0], tempo.SwingValidationError)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/groovectl/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	serveCmd.Flags().BoolVar(&withMIDI, "midi", false, "Also listen for MIDI taps on the configured port")

	// tap command
	tapCmd.Flags().StringVar(&midiPort, "midi-port", "", "MIDI input port name (overrides config)")
	tapCmd.Flags().IntVar(&midiChan, "channel", -1, "MIDI channel 0-15, -1 for any (overrides config)")

	validateCmd.AddCommand(validateTempoCmd)
	validateCmd.AddCommand(validateSwingCmd)

	// Add commands
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads config, builds the logger and the controller shared by all commands
func setup() (config.Config, *slog.Logger, *tempo.Controller, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	slog.SetDefault(logger)

	ctrl := tempo.New(cfg.ControllerOptions(logger)...)
	return cfg, logger, ctrl, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	_, _, ctrl, err := setup()
	if err != nil {
		return err
	}
	defer ctrl.Close()
	return tui.Run(ctrl)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, ctrl, err := setup()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	port := cfg.Server.Port
	if serverPort != 0 {
		port = serverPort
	}

	if withMIDI {
		in, err := cfg.MIDI.Input("")
		if err != nil {
			return err
		}
		src := miditap.New(ctrl, miditap.Options{
			Channel: cfg.MIDI.TapChannel,
			Apply:   cfg.MIDI.ApplyTaps,
			Logger:  logger,
		})
		if err := src.Listen(in); err != nil {
			return err
		}
		defer src.Close()
	}

	logger.Info("starting API server", "port", port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", port)
	return api.StartServer(ctrl, port)
}

func runTap(cmd *cobra.Command, args []string) error {
	cfg, logger, ctrl, err := setup()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	port, err := cfg.MIDI.Input(midiPort)
	if err != nil {
		return err
	}
	channel, err := cfg.MIDI.Channel(midiChan, cmd.Flags().Changed("channel"))
	if err != nil {
		return err
	}

	src := miditap.New(ctrl, miditap.Options{
		Channel: channel,
		Apply:   cfg.MIDI.ApplyTaps,
		Logger:  logger,
		OnEstimate: func(bpm float64) {
			fmt.Printf("%.1f BPM\n", bpm)
		},
	})
	if err := src.Listen(port); err != nil {
		return err
	}
	defer src.Close()

	fmt.Printf("Tap notes on %s, ctrl+c to stop\n", port)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	s := ctrl.State()
	fmt.Printf("Final tempo %.1f BPM\n", s.Target)
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports := miditap.InPorts()
	if len(ports) == 0 {
		fmt.Println("No MIDI input ports found")
		return nil
	}
	for i, name := range ports {
		fmt.Printf("%2d  %s\n", i, name)
	}
	return nil
}

func runPresets(cmd *cobra.Command, args []string) error {
	fmt.Println("Groove presets:")
	for _, p := range tempo.GroovePresets() {
		fmt.Printf("  %-10s %.2f\n", p.Name, p.Swing)
	}
	fmt.Println("MPC swing presets:")
	for _, p := range tempo.MPCSwingPresets() {
		fmt.Printf("  %-10s %.2f\n", p.Name, p.Swing)
	}
	return nil
}

func runValidate(cmd *cobra.Command, raw string, check func(float64) error) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	if err := check(v); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

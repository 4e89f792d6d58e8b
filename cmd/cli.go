package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"viz/internal/config"
	"viz/pkg/build"
)

// Options is the resolved command line: which one-off command to run
// (if any) and the final configuration with flag overrides applied.
type Options struct {
	Command string // "" runs the visualizer; "list" and "pick" are one-off.
	Config  *config.Config
	Record  bool
	Output  string
}

// ParseArgs builds the cobra command tree, executes it against
// os.Args and resolves the configuration. Flags override the config
// file only when explicitly set.
func ParseArgs() (*Options, error) {
	buildInfo := build.Get()
	options := &Options{}

	var (
		configPath      string
		deviceID        int
		sampleRate      float64
		framesPerBuffer int
		listenAddr      string
		verbose         bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio-reactive particle visualizer",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	pickCmd := &cobra.Command{
		Use:   "pick",
		Short: "Interactively pick a capture source",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "pick"
		},
	}
	rootCmd.AddCommand(pickCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")

	// Audio capture
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per capture buffer; also the FFT size (power of 2)")

	// Output
	rootCmd.PersistentFlags().StringVarP(&listenAddr, "addr", "a", config.DefaultListenAddr,
		"HTTP listen address for the viewer and WebSocket feed")
	rootCmd.PersistentFlags().BoolVarP(&options.Record, "record", "r", false,
		"Record the captured input to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&options.Output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// Explicit flags win over the file and environment.
	flags := rootCmd.PersistentFlags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = deviceID
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = framesPerBuffer
	}
	if flags.Changed("addr") {
		cfg.Server.ListenAddr = listenAddr
	}
	if options.Record {
		cfg.Recording.Enabled = true
	}
	if verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options.Config = cfg
	return options, nil
}

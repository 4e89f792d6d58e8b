package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"viz/cmd"
	"viz/internal/audio"
	"viz/internal/config"
	"viz/internal/log"
	"viz/internal/scene"
	"viz/internal/transport"
	"viz/internal/transport/udp"
	"viz/internal/tui"
	"viz/pkg/build"
	"viz/web"
)

// main is the entry point for the visualizer. The program flow is
// divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, pick) if requested
//   - Initialize PortAudio
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture and analysis engine
//   - Start the animator and frame broadcast loop
//   - Serve the viewer and WebSocket feed
//   - Publish metrics over UDP if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	options, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := options.Config

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}
	if cfg.Debug {
		log.SetLevel(log.LevelDebug)
	}

	// One-off commands manage PortAudio themselves.
	switch options.Command {
	case "list":
		if err := runList(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	case "pick":
		if err := runPick(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer audio.Terminate()

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	animator := scene.NewAnimator(cfg, engine)
	engine.SetSink(animator)

	// An empty listen address runs headless, useful with UDP output.
	var tr transport.Transport
	if cfg.Server.ListenAddr != "" {
		tr = transport.NewWebSocketServer(cfg.Server.ListenAddr, web.Handler(), animator)
	} else {
		tr = transport.NewLoggingTransport()
	}
	engine.SetTransport(tr)

	var publisher *udp.Publisher
	var udpSender *udp.Sender
	if cfg.Server.UDPEnabled {
		sender, err := udp.NewSender(cfg.Server.UDPTargetAddress)
		if err != nil {
			log.Fatalf("UDP sender: %v", err)
		}
		udpSender = sender
		publisher, err = udp.NewPublisher(cfg.Server.UDPSendInterval, sender, engine)
		if err != nil {
			log.Fatalf("UDP publisher: %v", err)
		}
		publisher.Start()
	}

	// Capture is best effort at boot. The viewer can toggle it later,
	// and the field keeps animating without audio.
	if err := engine.StartListening(); err != nil {
		log.Warnf("Audio: Capture unavailable at startup: %v", err)
	} else {
		animator.SetListening(true)
	}

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(recordingPath(options, cfg)); err != nil {
			log.Fatalf("%v", err)
		}
	}

	animator.Start(tr)

	if cfg.Server.ListenAddr != "" {
		log.Infof("Viewer at http://localhost%s ('%s --help' for usage)",
			cfg.Server.ListenAddr, build.Get().Name)
	}

	<-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	animator.Stop()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Errorf("Error closing UDP publisher: %v", err)
		}
	}
	if udpSender != nil {
		if err := udpSender.Close(); err != nil {
			log.Errorf("Error closing UDP sender: %v", err)
		}
	}

	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			log.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", engine.RecordingPath())
		}
	}

	if err := engine.Close(); err != nil {
		log.Errorf("Error closing audio engine: %v", err)
	}
	if err := tr.Close(); err != nil {
		log.Errorf("Error closing transport: %v", err)
	}
}

// runList prints the device table and exits.
func runList() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices()
}

// runPick runs the interactive capture source picker and prints flags
// that reproduce the chosen source.
func runPick() error {
	selection, err := tui.RunPicker()
	if err != nil {
		return err
	}
	if !selection.Confirmed {
		fmt.Println("No capture source selected.")
		return nil
	}

	fmt.Printf("Selected device %d at %.0f Hz, FFT size %d.\n",
		selection.DeviceID, selection.SampleRate, selection.FFTSize)
	fmt.Printf("Run: %s -d %d -s %.0f -b %d\n",
		build.Get().Name, selection.DeviceID, selection.SampleRate, selection.FFTSize)
	return nil
}

// recordingPath resolves where a new recording should be written.
func recordingPath(options *cmd.Options, cfg *config.Config) string {
	if options.Output != "" {
		return options.Output
	}
	name := "recording-" + time.Now().UTC().Format("02-01-2006-150405") + "." + cfg.Recording.Format
	if cfg.Recording.OutputDir != "" {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err == nil {
			return filepath.Join(cfg.Recording.OutputDir, name)
		}
	}
	return name
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/control-server/internal/alertfeed"
	"github.com/breeze-rmm/control-server/internal/audit"
	"github.com/breeze-rmm/control-server/internal/capability"
	"github.com/breeze-rmm/control-server/internal/config"
	"github.com/breeze-rmm/control-server/internal/coordinator"
	"github.com/breeze-rmm/control-server/internal/logging"
	"github.com/breeze-rmm/control-server/internal/network"
	"github.com/breeze-rmm/control-server/internal/platform"
)

var (
	version     = "0.1.0"
	cfgFile     string
	flagAddress string
	flagPort    uint16
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "control-server",
	Short: "Remote system control server",
	Long:  `control-server exposes synthetic mouse/keyboard input, screen capture, and window enumeration to authenticated clients over a TCP command protocol.`,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the control server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe the platform backend's capabilities and exit",
	Run: func(cmd *cobra.Command, args []string) {
		runCapabilityProbe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("control-server v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/breeze-control/control-server.yaml)")
	serverCmd.Flags().StringVar(&flagAddress, "address", "", "bind address (overrides config)")
	serverCmd.Flags().Uint16Var(&flagPort, "port", 0, "bind port (overrides config, 0 keeps config value)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log = logging.L("main")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if flagAddress != "" {
		cfg.BindAddress = flagAddress
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	return cfg, nil
}

// runServer loads configuration, wires every component behind the
// coordinator, and blocks serving connections until SIGINT/SIGTERM.
func runServer() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	backend, caps := platform.Select(cfg.PlatformOverride)
	gate := capability.New(backend)
	log.Info("platform backend selected",
		"hasGUI", caps.HasGUI,
		"canControlMouse", caps.CanControlMouse,
		"canControlKeyboard", caps.CanControlKeyboard,
		"canCaptureScreen", caps.CanCaptureScreen,
		"canEnumerateWindows", caps.CanEnumerateWindows,
	)

	coord, err := coordinator.New(cfg, gate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize coordinator: %v\n", err)
		os.Exit(1)
	}
	coord.Audit.Log(audit.EventServerStart, audit.SeverityInfo, "", "", map[string]any{"version": version})

	var relay *alertfeed.Relay
	if cfg.AlertFeedEnabled {
		relay = alertfeed.New(alertfeed.Config{URL: cfg.AlertFeedURL}, audit.NewRealTimeMonitor(coord.Audit))
		go relay.Start()
	}

	srv := network.New(cfg, coord)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind listener: %v\n", err)
		os.Exit(1)
	}
	log.Info("control server is running", "address", srv.Addr().String())

	maintenanceDone := make(chan struct{})
	go runMaintenanceLoop(coord, maintenanceDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down control server")

	close(maintenanceDone)
	if relay != nil {
		relay.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	coord.Audit.Log(audit.EventServerStop, audit.SeverityInfo, "", "", nil)
	coord.Audit.Close()
	log.Info("control server stopped")
}

// runMaintenanceLoop drives the coordinator's periodic idle-session sweep,
// display auto-optimization, and batcher retuning until done is closed.
func runMaintenanceLoop(coord *coordinator.Coordinator, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			coord.Maintenance(0)
		}
	}
}

// runCapabilityProbe reports the detected backend and its capabilities,
// exercised by operators checking what a host supports before deploying.
func runCapabilityProbe() {
	cfg, err := loadConfig()
	if err != nil {
		cfg = config.Default()
	}
	logging.Init("text", "info", os.Stdout)

	backend, caps := platform.Select(cfg.PlatformOverride)
	_ = backend

	fmt.Println("Platform capability probe")
	fmt.Printf("  HasGUI:              %v\n", caps.HasGUI)
	fmt.Printf("  CanControlMouse:     %v\n", caps.CanControlMouse)
	fmt.Printf("  CanControlKeyboard:  %v\n", caps.CanControlKeyboard)
	fmt.Printf("  CanCaptureScreen:    %v\n", caps.CanCaptureScreen)
	fmt.Printf("  CanEnumerateWindows: %v\n", caps.CanEnumerateWindows)
	fmt.Printf("  SupportsRealInput:   %v\n", caps.SupportsRealInput)
}

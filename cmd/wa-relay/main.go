// ABOUTME: Entry point for the wa-relay gateway
// ABOUTME: Connects WhatsApp chats to the conversational backend

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	qrterminal "github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/2389/wa-relay/internal/bridge"
	"github.com/2389/wa-relay/internal/config"
	"github.com/2389/wa-relay/internal/creds"
	"github.com/2389/wa-relay/internal/relay"
)

const banner = `
    ╭──────────────────────────────╮
    │                              │
    │   ╻ ╻┏━┓   ┏━┓┏━╸╻  ┏━┓╻ ╻   │
    │   ┃┏┛┣━┫   ┣┳┛┣╸ ┃  ┣━┫┗┳┛   │
    │   ┗┛ ╹ ╹   ╹┗╸┗━╸┗━╸╹ ╹ ╹    │
    │                              │
    │      wa-relay gateway        │
    │                              │
    ╰──────────────────────────────╯
`

// getConfigPath returns the path to the relay config file.
// Priority: WA_RELAY_CONFIG env var > XDG_CONFIG_HOME/wa-relay/config.toml > ~/.config/wa-relay/config.toml
func getConfigPath() string {
	if envPath := os.Getenv("WA_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "wa-relay", "config.toml")
}

// getDataPath returns the path to the wa-relay data directory.
// Priority: XDG_DATA_HOME/wa-relay > ~/.local/share/wa-relay
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "wa-relay")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()
	dataPath := getDataPath()

	// Ensure data directory exists
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	storePath := cfg.Network.StorePath
	if storePath == "" {
		storePath = filepath.Join(dataPath, "session.db")
	}

	// Setup logger
	logger := setupLogger(cfg.Logging.Level)

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Store:    %s\n", storePath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.URL)
	fmt.Println()

	ctx := context.Background()

	// Open the credential store; absence of credentials triggers pairing.
	credStore, err := creds.Open(ctx, storePath, waLog.Stdout("Database", waLogLevel(cfg.Logging.Level), true))
	if err != nil {
		return err
	}
	defer credStore.Close()

	// Network client over the stored device
	client := whatsmeow.NewClient(credStore.Device(), waLog.Stdout("Client", waLogLevel(cfg.Logging.Level), true))
	session := bridge.NewWASession(client, logger)

	// Backend relay client
	relayer := relay.NewClient(cfg.Backend.URL, cfg.Backend.FastReplies, logger)

	// Wire the connection manager and dispatcher
	manager := bridge.NewManager(session, credStore, logger)
	dispatcher := bridge.NewDispatcher(session, relayer, manager, logger)
	defer dispatcher.Close()

	manager.OnMessage(dispatcher.Dispatch)
	manager.OnPairingCode(printPairingCode)
	session.Attach(manager.Deliver)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting relay gateway")
	err = manager.Run(ctx)
	switch {
	case errors.Is(err, bridge.ErrLoggedOut):
		fmt.Println()
		color.New(color.FgYellow).Println("    This device was logged out. Restart to pair again.")
		return nil
	case errors.Is(err, bridge.ErrReplaced):
		fmt.Println()
		color.New(color.FgYellow).Println("    Another client took over this session. Exiting.")
		return nil
	default:
		return err
	}
}

// printPairingCode renders the linking code as a scannable QR in the terminal.
func printPairingCode(code string) {
	fmt.Println()
	color.New(color.FgYellow).Println("    Scan this code with WhatsApp (Linked Devices):")
	fmt.Println()
	qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
	fmt.Println()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// waLogLevel maps the config log level onto whatsmeow's logger levels.
func waLogLevel(level string) string {
	switch level {
	case "debug":
		return "DEBUG"
	case "warn", "error":
		return "ERROR"
	default:
		return "WARN"
	}
}

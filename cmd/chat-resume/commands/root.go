package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/webollama/chat-resume/internal/api"
	"github.com/webollama/chat-resume/internal/config"
	"github.com/webollama/chat-resume/internal/tui"
)

var (
	configPath string
	serverURL  string
	dateFrom   string
	dateTo     string
	debugMode  bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chat-resume",
		Short: "Browse and resume chat sessions from a chat backend",
		Long: `chat-resume is a TUI application for browsing, searching and resuming
conversation sessions stored by a chat backend. Sessions are listed with
lazy detail loading and virtualized scrolling, so large histories stay
responsive.`,
		RunE: runTUI,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.chat-resume/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Session API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&dateFrom, "from", "", "Only show sessions on or after this ISO date")
	rootCmd.Flags().StringVar(&dateTo, "to", "", "Only show sessions on or before this ISO date")

	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewSearchCommand())
	rootCmd.AddCommand(NewStatsCommand())

	return rootCmd
}

// loadSetup loads config, applies flag overrides and builds the shared
// client and logger.
func loadSetup(logToFile bool) (*config.Config, *api.Client, *log.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}

	logger, err := newLogger(cfg, logToFile)
	if err != nil {
		return nil, nil, nil, err
	}

	clientConfig := api.DefaultConfig()
	clientConfig.BaseURL = cfg.Server.BaseURL
	clientConfig.Timeout = cfg.Timeout()
	clientConfig.PageLimit = cfg.UI.PageLimit
	client := api.NewClient(clientConfig, logger)

	return cfg, client, logger, nil
}

// newLogger builds the logger. The TUI owns the terminal, so interactive
// runs log to a file; plain commands log to stderr.
func newLogger(cfg *config.Config, logToFile bool) (*log.Logger, error) {
	level := log.InfoLevel
	if debugMode {
		level = log.DebugLevel
	} else if parsed, err := log.ParseLevel(cfg.Log.Level); err == nil {
		level = parsed
	}

	if !logToFile {
		logger := log.New(os.Stderr)
		logger.SetLevel(level)
		return logger, nil
	}

	path, err := cfg.LogFile()
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.New(file)
	logger.SetLevel(level)
	return logger, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, client, logger, err := loadSetup(true)
	if err != nil {
		return err
	}

	result, err := tui.Run(cfg, client, logger, dateFrom, dateTo)
	if err != nil {
		return err
	}

	if result.ResumedSessionID != "" {
		fmt.Printf("Resumed session %s\n", result.ResumedSessionID)
	}
	return nil
}

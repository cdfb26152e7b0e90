package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/eddez/backend/internal/client"
	"github.com/zhouzirui/eddez/backend/internal/config"
	"github.com/zhouzirui/eddez/backend/internal/logging"
)

var (
	// 全局参数
	verbose   bool
	serverURL string

	cfg    *config.Config
	api    *client.Client
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "widget",
	Short: "Eddez support chat in the terminal",
	Long: `widget is a terminal front end for the Eddez support assistant.

It talks to the proxy server exactly like the browser widget: replies are
grounded on the server's knowledge base, sessions are saved per user and the
knowledge base refreshes live when an admin edits it.

Run "widget chat --email you@example.com" to start chatting.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		level := zapcore.WarnLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		logger, err = logging.NewConsole(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		base := cfg.Widget.ServerURL
		if serverURL != "" {
			base = serverURL
		}
		api = client.New(base, nil)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "proxy server URL (default WIDGET_SERVER_URL)")

	rootCmd.AddCommand(chatCmd, signupCmd, loginCmd, kbCmd, historyCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

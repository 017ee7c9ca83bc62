package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"legalmind/internal/config"
	"legalmind/internal/extract"
	"legalmind/internal/logging"
)

// Version is overridden at build time with -ldflags "-X legalmind/internal/cli.Version=...".
var Version = "dev"

// NewRootCmd creates the root command. Running it without a subcommand starts the server.
func NewRootCmd() *cobra.Command {
	cfg := config.Default()
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "legalmind",
		Short:         "LegalMind - legal assistant backend",
		Long:          `LegalMind answers legal questions about uploaded documents and drafts contracts through a configurable LLM provider.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			*cfg = *loaded
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.BasicConfig.LogLevel = "debug"
			}
			logging.Setup(os.Stderr, cfg.BasicConfig.LogLevel, cfg.BasicConfig.LogFormat)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newChatCmd(cfg))
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (defaults to $LEGALMIND_CONFIG or config.json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.BasicConfig.ServerAddress = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "Listen address, overrides basic_config.server_address")
	return cmd
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [FILE]",
		Short: "Print the text extracted from a PDF or TXT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ex, err := extract.New(ctx)
			if err != nil {
				return err
			}
			text, err := ex.LoadFile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "legalmind %s\n", Version)
		},
	}
}

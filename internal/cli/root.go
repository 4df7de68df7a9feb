package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/logger"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "docqa - Ask questions about your PDF, DOCX and TXT documents",
	Long: `docqa ingests documents into a vector index and answers questions about
them with an LLM, citing the pages the answer came from.

Example usage:
  docqa ingest ./papers              # Ingest every supported file under ./papers
  docqa ask -q "What is the method?" # Ask a question
  docqa serve                        # Run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv(os.Getenv)
		if logLevel != "" {
			cfg.Logging.Level = strings.ToLower(logLevel)
		}
		if logJSON {
			cfg.Logging.JSON = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger.Init(&logger.Config{
			Level:      logger.LogLevel(cfg.Logging.Level),
			Output:     os.Stderr,
			JSON:       cfg.Logging.JSON,
			TimeFormat: "15:04:05",
		})
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docqa.yaml or ./.docqa/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

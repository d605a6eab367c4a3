package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "splitpick",
	Short: "splitpick - a deterministic A/B experiment engine with automatic winner lock-in",
	Long: `splitpick creates multi-variant experiments, deterministically assigns
subjects to variants, records outcome events, and locks in a statistically
significant winner. Single Go binary, embedded SQLite.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("SP_DB_PATH", ""), "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnvOrDefault("SP_CONFIG", ""), "path to YAML config file")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-voxura-native/internal/config"
	"go-voxura-native/internal/database"
	"go-voxura-native/internal/metrics"
	"go-voxura-native/internal/models"
	"go-voxura-native/internal/transport"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// Persistent flag values
var (
	logLevel    string
	logFormat   string
	logHttpFlag bool
	dbPathFlag  string
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voxura-native",
	Short: "Native back end of the voxura mod manager",
	Long: `voxura-native inspects mod archives and caches their metadata, downloads and
unpacks game assets with progress reporting, and captures OAuth redirect codes
on a loopback port.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logHttpFlag, "log-http", false, "Log HTTP request/response headers to http.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "Key-value database directory (overrides config)")

	cobra.OnInitialize(initLogging)
}

// initLogging configures logrus based on persistent flags. Logs go to stderr
// so command output on stdout stays machine-readable.
func initLogging() {
	log.SetOutput(os.Stderr)
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.Debugf("Logging configured: Level=%s, Format=%s", log.GetLevel(), logFormat)
}

// loadGlobalConfig loads the configuration and applies flag overrides.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-http") {
		globalConfig.LogHttpRequests = logHttpFlag
		log.Debugf("Overriding LogHttpRequests based on --log-http flag: %t", logHttpFlag)
	}
	if cmd.Flags().Changed("db-path") && dbPathFlag != "" {
		globalConfig.DatabasePath = dbPathFlag
		log.Debugf("Overriding DatabasePath based on --db-path flag: %s", dbPathFlag)
	}

	if globalConfig.MetricsAddr != "" {
		metrics.Serve(globalConfig.MetricsAddr)
	}
	return nil
}

// withDB opens the configured database for the duration of fn.
func withDB(fn func(db *database.DB) error) error {
	db, err := database.Open(globalConfig.DatabasePath, globalConfig.MaxValueSizeBytes)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()
	return fn(db)
}

// newHTTPClient builds the download client, wrapping it in the logging
// transport when HTTP logging is enabled.
func newHTTPClient() (*http.Client, func() error, error) {
	logPath := ""
	if globalConfig.LogHttpRequests {
		logPath = transport.DefaultLogPath
		log.Infof("HTTP logging to file: %s", logPath)
	}
	return transport.NewClient(time.Duration(globalConfig.DownloadTimeoutSec)*time.Second, logPath)
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

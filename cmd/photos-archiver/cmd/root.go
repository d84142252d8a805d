package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go-photos-archiver/internal/api"
	"go-photos-archiver/internal/config"
	"go-photos-archiver/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// cfgFile holds the path to the config file specified by the user
	cfgFile string

	logLevel  string
	logFormat string // "text" or "json"

	logApiFlag     bool
	savePathFlag   string
	apiDelayFlag   int
	apiTimeoutFlag int
)

// globalConfig holds the loaded configuration with persistent flag overrides applied.
var globalConfig models.Config

// globalHttpTransport is either http.DefaultTransport or the API logging wrapper.
var globalHttpTransport http.RoundTripper = http.DefaultTransport

var rootCmd = &cobra.Command{
	Use:   "photos-archiver",
	Short: "Archive a Google Photos library to local disk or S3",
	Long: `Photos Archiver downloads every media item of a Google Photos library
exactly once. A ledger of archived items is kept so that repeated runs only
fetch what is new.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command and exits non-zero on error. Called by main.main().
func Execute() {
	err := rootCmd.Execute()
	closeApiLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default \"config.toml\")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to "+api.DefaultLogFile+" (overrides config)")
	rootCmd.PersistentFlags().StringVar(&savePathFlag, "save-path", "", "Directory to archive media into (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiDelayFlag, "api-delay", -1, "Delay between API page requests in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for HTTP requests in seconds (overrides config)")
}

// initLogging configures logrus based on persistent flags
func initLogging() {
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

// loadGlobalConfig loads the configuration, applies persistent flag
// overrides and sets up the shared HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	initLogging()

	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
		log.Debugf("Overriding LogApiRequests based on --log-api flag: %t", logApiFlag)
	}

	if cmd.Flags().Changed("save-path") {
		if savePathFlag != "" {
			globalConfig.SavePath = savePathFlag
			log.Debugf("Overriding SavePath based on --save-path flag: %s", savePathFlag)
		} else {
			log.Warn("--save-path flag provided but value is empty, ignoring.")
		}
	}

	if cmd.Flags().Changed("api-delay") {
		if apiDelayFlag >= 0 {
			globalConfig.ApiDelayMs = apiDelayFlag
		} else {
			log.Warnf("--api-delay flag provided with invalid value %d, using config value: %d ms", apiDelayFlag, globalConfig.ApiDelayMs)
		}
	}
	if globalConfig.ApiDelayMs < 0 {
		globalConfig.ApiDelayMs = 0
	}

	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			globalConfig.ApiClientTimeoutSec = apiTimeoutFlag
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value: %d sec", apiTimeoutFlag, globalConfig.ApiClientTimeoutSec)
		}
	}
	if globalConfig.ApiClientTimeoutSec <= 0 {
		globalConfig.ApiClientTimeoutSec = config.DefaultApiClientTimeoutSec
	}

	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := api.DefaultLogFile
		if globalConfig.SavePath != "" {
			if _, statErr := os.Stat(globalConfig.SavePath); statErr == nil {
				logFilePath = filepath.Join(globalConfig.SavePath, logFilePath)
			} else {
				log.Warnf("SavePath '%s' not found, saving %s to current directory.", globalConfig.SavePath, api.DefaultLogFile)
			}
		}
		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			log.Infof("API logging to file: %s", logFilePath)
			globalHttpTransport = loggingTransport
		}
	}
	return nil
}

func closeApiLog() {
	if lt, ok := globalHttpTransport.(*api.LoggingTransport); ok {
		if err := lt.Close(); err != nil {
			log.WithError(err).Error("Error closing API log file")
		}
		globalHttpTransport = http.DefaultTransport
	}
}

package cmd

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go-photos-archiver/internal/archiver"
	"go-photos-archiver/internal/helpers"
	"go-photos-archiver/internal/ledger"
	"go-photos-archiver/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	backendDisk = "disk"
	backendS3   = "s3"
	backendNull = "null"

	albumsDirName = "albums"
)

// archiveRunOptions holds the archive settings that are not part of models.Config.
type archiveRunOptions struct {
	Filter     *models.DateFilter
	AlbumsOnly bool
	Index      bool
	Progress   bool
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().String("download-path", "", "Directory to archive media into (overrides SavePath)")
	archiveCmd.Flags().String("db-path", "", "Ledger location (overrides DatabasePath)")
	archiveCmd.Flags().IntP("concurrency", "c", 0, "Number of concurrent archive workers (overrides Concurrency)")
	archiveCmd.Flags().String("date-filter", "", "Comma separated YYYY/MM/DD dates, any part may be * (max 5)")
	archiveCmd.Flags().String("date-range-filter", "", "Comma separated YYYY/MM/DD-YYYY/MM/DD ranges (max 5)")
	archiveCmd.Flags().Bool("albums-only", false, "Archive album by album and link each item into its album directory")
	archiveCmd.Flags().Int("max-attempts", 0, "Fetch attempts per media item (overrides MaxAttempts)")
	archiveCmd.Flags().Int("retry-delay", -1, "Delay between fetch attempts in ms (overrides RetryDelayMs)")
	archiveCmd.Flags().String("backend", "", "Archive destination: disk, s3 or null (overrides Backend)")
	archiveCmd.Flags().String("ledger", "", "Ledger backend: sqlite, bitcask, bolt or memory (overrides LedgerBackend)")
	archiveCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run (overrides MetricsFile)")
	archiveCmd.Flags().Bool("index", true, "Add archived items to the search index")
	archiveCmd.Flags().Bool("progress", true, "Show live per-worker progress")

	viper.BindPFlag("archive.download_path", archiveCmd.Flags().Lookup("download-path"))
	viper.BindPFlag("archive.db_path", archiveCmd.Flags().Lookup("db-path"))
	viper.BindPFlag("archive.concurrency", archiveCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("archive.date_filter", archiveCmd.Flags().Lookup("date-filter"))
	viper.BindPFlag("archive.date_range_filter", archiveCmd.Flags().Lookup("date-range-filter"))
	viper.BindPFlag("archive.albums_only", archiveCmd.Flags().Lookup("albums-only"))
	viper.BindPFlag("archive.max_attempts", archiveCmd.Flags().Lookup("max-attempts"))
	viper.BindPFlag("archive.retry_delay", archiveCmd.Flags().Lookup("retry-delay"))
	viper.BindPFlag("archive.backend", archiveCmd.Flags().Lookup("backend"))
	viper.BindPFlag("archive.ledger", archiveCmd.Flags().Lookup("ledger"))
	viper.BindPFlag("archive.metrics_file", archiveCmd.Flags().Lookup("metrics-file"))
	viper.BindPFlag("archive.index", archiveCmd.Flags().Lookup("index"))
	viper.BindPFlag("archive.progress", archiveCmd.Flags().Lookup("progress"))
}

// applyArchiveFlags overrides cfg with every archive flag the user set and
// parses the date filters.
func applyArchiveFlags(cmd *cobra.Command, cfg *models.Config) (archiveRunOptions, error) {
	flags := cmd.Flags()

	if flags.Changed("download-path") {
		cfg.SavePath = viper.GetString("archive.download_path")
		log.Debugf("Overriding SavePath with --download-path: %s", cfg.SavePath)
	}
	if flags.Changed("db-path") {
		cfg.DatabasePath = viper.GetString("archive.db_path")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = viper.GetInt("archive.concurrency")
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = viper.GetInt("archive.max_attempts")
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelayMs = viper.GetInt("archive.retry_delay")
	}
	if flags.Changed("backend") {
		cfg.Backend = viper.GetString("archive.backend")
	}
	if flags.Changed("ledger") {
		cfg.LedgerBackend = viper.GetString("archive.ledger")
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = viper.GetString("archive.metrics_file")
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.LedgerBackend == ledger.BackendMemory {
		log.Warn("Using the memory ledger; nothing will be remembered after this run.")
	}

	opts := archiveRunOptions{
		AlbumsOnly: viper.GetBool("archive.albums_only"),
		Index:      viper.GetBool("archive.index"),
		Progress:   viper.GetBool("archive.progress"),
	}

	filter, err := buildDateFilter(viper.GetString("archive.date_filter"), viper.GetString("archive.date_range_filter"))
	if err != nil {
		return opts, err
	}
	if filter != nil && opts.AlbumsOnly {
		return opts, fmt.Errorf("--albums-only cannot be combined with date filters")
	}
	opts.Filter = filter
	return opts, nil
}

// buildDateFilter returns nil when neither flag is set.
func buildDateFilter(dates, ranges string) (*models.DateFilter, error) {
	parsedDates, err := models.ParseDateFilter(dates)
	if err != nil {
		return nil, err
	}
	parsedRanges, err := models.ParseDateRangeFilter(ranges)
	if err != nil {
		return nil, err
	}
	return models.NewDateFilter(parsedDates, parsedRanges)
}

// buildArchiver constructs the configured destination and returns it along
// with the root under which album directories are created.
func buildArchiver(ctx context.Context, cfg models.Config, l ledger.Ledger, fetcher archiver.Fetcher, opts archiver.Options) (archiver.Archiver, string, error) {
	switch cfg.Backend {
	case backendDisk, "":
		if !helpers.CheckAndMakeDir(cfg.SavePath) {
			return nil, "", fmt.Errorf("%w: cannot create download path %s", archiver.ErrFileSystem, cfg.SavePath)
		}
		return archiver.NewDiskArchiver(cfg.SavePath, l, fetcher, opts), filepath.Join(cfg.SavePath, albumsDirName), nil
	case backendS3:
		client, err := archiver.NewS3Client(ctx, cfg.S3Region)
		if err != nil {
			return nil, "", err
		}
		return archiver.NewS3Archiver(client, cfg.S3Bucket, cfg.S3Prefix, l, fetcher, opts), albumsDirName, nil
	case backendNull:
		log.Warn("Using the null backend; nothing will be downloaded.")
		return &archiver.NullArchiver{}, albumsDirName, nil
	default:
		return nil, "", fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// albumDir places an album under root. Local roots use OS separators and
// object-store roots use forward slashes.
func albumDir(root, title string) string {
	name := helpers.SafePathComponent(title)
	if filepath.IsAbs(root) || strings.ContainsRune(root, filepath.Separator) {
		return filepath.Join(root, name)
	}
	return path.Join(root, name)
}

func archiveTarget(cfg models.Config) string {
	switch cfg.Backend {
	case backendS3:
		return "s3://" + path.Join(cfg.S3Bucket, cfg.S3Prefix)
	case backendNull:
		return "nowhere"
	default:
		return cfg.SavePath
	}
}

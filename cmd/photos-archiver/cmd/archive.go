package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-photos-archiver/index"
	"go-photos-archiver/internal/api"
	"go-photos-archiver/internal/archiver"
	"go-photos-archiver/internal/config"
	"go-photos-archiver/internal/downloader"
	"go-photos-archiver/internal/ledger"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Download every new media item of the library",
	Long: `Enumerates the library (optionally restricted by --date-filter or
--date-range-filter) and downloads each media item not yet in the ledger.

With --albums-only every album is walked instead. Items are still stored at
their canonical <download-path>/<year>/<month>/<day>/ location and each album
directory under <download-path>/albums/ links to them.`,
	RunE: runArchive,
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	opts, err := applyArchiveFlags(cmd, &cfg)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.StandardLogger()

	log.Infof("Opening %s ledger at: %s", cfg.LedgerBackend, cfg.DatabasePath)
	l, err := ledger.Open(ctx, cfg.LedgerBackend, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			log.WithError(err).Error("Error closing ledger")
		}
	}()

	httpClient := &http.Client{
		Timeout:   time.Duration(cfg.ApiClientTimeoutSec) * time.Second,
		Transport: globalHttpTransport,
	}
	client := api.NewClient(api.Options{
		BaseURL:     cfg.ApiBaseUrl,
		AccessToken: cfg.AccessToken,
		HTTPClient:  httpClient,
		PageSize:    cfg.PageSize,
		PageDelay:   time.Duration(cfg.ApiDelayMs) * time.Millisecond,
		Logger:      logger,
	})
	fetcher := downloader.NewDownloader(httpClient, cfg.AccessToken, logger)

	metrics := archiver.NewMetrics()
	archiverOpts := archiver.Options{
		Logger: logger,
		Retry: archiver.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		},
		Metrics: metrics,
	}

	if opts.Index {
		idx, err := index.OpenOrCreateIndex(cfg.BleveIndexPath)
		if err != nil {
			return fmt.Errorf("failed to open search index at %s: %w", cfg.BleveIndexPath, err)
		}
		defer func() {
			if err := idx.Close(); err != nil {
				log.WithError(err).Error("Error closing search index")
			}
		}()
		archiverOpts.Indexer = index.NewArchived(idx)
	}

	a, albumRoot, err := buildArchiver(ctx, cfg, l, fetcher, archiverOpts)
	if err != nil {
		return err
	}

	var progress *uilive.Writer
	if opts.Progress {
		progress = uilive.New()
		progress.Out = cmd.OutOrStdout()
		progress.Start()
	}

	engine, err := archiver.NewEngine(a, archiver.EngineOptions{
		Workers:  cfg.Concurrency,
		Logger:   logger,
		Metrics:  metrics,
		Progress: progress,
	})
	if err != nil {
		return err
	}

	log.Infof("Archiving with %d workers into %s (%s backend)", cfg.Concurrency, archiveTarget(cfg), cfg.Backend)
	start := time.Now()

	var summary archiver.Summary
	if opts.AlbumsOnly {
		summary = archiveAlbums(ctx, engine, client, albumRoot)
	} else {
		summary = engine.Run(ctx, client.SearchMediaItems(ctx, opts.Filter), "")
	}

	if progress != nil {
		progress.Stop()
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archived %d new MediaItem(s) in %.2f seconds\n", summary.Archived, elapsed.Seconds())
	fmt.Fprintf(out, "Skipped: %d, Failed: %d, Abandoned: %d\n", summary.Skipped, summary.Failed, summary.Abandoned)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.WithError(err).Errorf("Failed to write metrics to %s", cfg.MetricsFile)
		}
	}

	if summary.Err != nil {
		return fmt.Errorf("%d media item(s) failed: %w", summary.Failed, summary.Err)
	}
	if summary.Abandoned > 0 || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("archive interrupted, %d media item(s) abandoned", summary.Abandoned)
	}
	return nil
}

// archiveAlbums runs the engine once per album. A failure to list albums ends
// the walk and is counted as one failure.
func archiveAlbums(ctx context.Context, engine *archiver.Engine, client *api.Client, albumRoot string) archiver.Summary {
	var total archiver.Summary
	for album, err := range client.Albums(ctx) {
		if err != nil {
			total = mergeSummaries(total, archiver.Summary{Failed: 1, Err: fmt.Errorf("listing albums: %w", err)})
			break
		}
		albumPath := albumDir(albumRoot, album.DisplayTitle())
		log.WithFields(log.Fields{"albumId": album.ID, "album": album.DisplayTitle()}).Info("Archiving album")
		total = mergeSummaries(total, engine.Run(ctx, client.AlbumMediaItems(ctx, album.ID), albumPath))
		if ctx.Err() != nil {
			break
		}
	}
	return total
}

func mergeSummaries(a, b archiver.Summary) archiver.Summary {
	return archiver.Summary{
		Archived:  a.Archived + b.Archived,
		Skipped:   a.Skipped + b.Skipped,
		Failed:    a.Failed + b.Failed,
		Abandoned: a.Abandoned + b.Abandoned,
		Err:       errors.Join(a.Err, b.Err),
	}
}

package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go-photos-archiver/index"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	searchIndexPath string
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search the index of archived media items",
	Long: `Searches the Bleve index written by 'archive'. Supports Bleve's query
string syntax over these fields:
  - id, filename, mimeType, description
  - filePath, album, createdAt
  - cameraMake, cameraModel

Examples:
  photos-archiver search sunset
  photos-archiver search "+cameraMake:canon +album:holidays"
  photos-archiver search "+mimeType:video"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchIndexPath, "index-path", "", "Index location (overrides BleveIndexPath)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("search query cannot be empty")
	}

	indexPath := globalConfig.BleveIndexPath
	if searchIndexPath != "" {
		indexPath = searchIndexPath
	}
	if indexPath == "" {
		return errors.New("index path is not set, use --index-path or BleveIndexPath")
	}

	// Open rather than OpenOrCreateIndex so a search never creates an index.
	idx, err := bleve.Open(indexPath)
	if err != nil {
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return fmt.Errorf("no search index at %s, run 'archive' first", indexPath)
		}
		return fmt.Errorf("failed to open search index at %s: %w", indexPath, err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.WithError(err).Error("Error closing search index")
		}
	}()

	res, err := index.SearchIndex(idx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	log.Debugf("Search finished. Hits: %d, Total: %d, Took: %s", len(res.Hits), res.Total, res.Took)

	out := cmd.OutOrStdout()
	if res.Total == 0 {
		fmt.Fprintln(out, "No results found matching your query.")
		return nil
	}
	fmt.Fprintf(out, "%d result(s), showing %d\n", res.Total, len(res.Hits))
	for i, hit := range res.Hits {
		fmt.Fprintf(out, "[%d] %s (score %.2f)\n", i+1, hit.ID, hit.Score)
		fields := make([]string, 0, len(hit.Fields))
		for field := range hit.Fields {
			if field != "id" {
				fields = append(fields, field)
			}
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(out, "  %s: %v\n", field, hit.Fields[field])
		}
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"go-photos-archiver/internal/archiver"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove leftovers of interrupted runs from the download directory",
	Long: `Recursively scans the configured SavePath and removes temporary files
left behind when a write was interrupted. With --dangling-links, album links
whose media item was never downloaded are removed as well.`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolP("dangling-links", "l", false, "Also remove album links to files that do not exist")
}

func runClean(cmd *cobra.Command, args []string) error {
	savePath := globalConfig.SavePath
	if savePath == "" {
		return errors.New("SavePath is not configured, cannot determine where to clean")
	}
	if strings.ToLower(globalConfig.Backend) == backendS3 {
		log.Warn("Backend is s3; only the local SavePath is cleaned.")
	}
	dangling, _ := cmd.Flags().GetBool("dangling-links")

	log.Infof("Scanning %s for leftovers...", savePath)
	report, err := archiver.Clean(savePath, dangling, log.StandardLogger())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Clean complete. Removed %d temporary file(s) and %d dangling album link(s).\n",
		report.TempFiles, report.DanglingLinks)
	if report.Failed > 0 {
		return fmt.Errorf("failed to remove %d file(s)", report.Failed)
	}
	return nil
}

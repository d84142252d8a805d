package archiver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CleanReport counts what Clean removed.
type CleanReport struct {
	TempFiles     int
	DanglingLinks int
	Failed        int
}

// isTempFile matches the names DiskWriter.Write gives its temporary files.
func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}

// Clean walks a disk archive and removes temporary files left by interrupted
// writes. With danglingLinks set it also removes album links whose canonical
// file was never written.
func Clean(baseDir string, danglingLinks bool, logger log.FieldLogger) (CleanReport, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	var report CleanReport

	info, err := os.Stat(baseDir)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrFileSystem, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("%w: %s is not a directory", ErrFileSystem, baseDir)
	}

	remove := func(path, kind string, counter *int) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WithError(err).Errorf("Failed to remove %s %s", kind, path)
			report.Failed++
			return
		}
		logger.Infof("Removed %s: %s", kind, path)
		*counter++
	}

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warnf("Error accessing path %q during scan: %v", path, err)
			return nil
		}
		switch {
		case d.IsDir():
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			if !danglingLinks {
				return nil
			}
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				remove(path, "dangling album link", &report.DanglingLinks)
			}
		case d.Type().IsRegular() && isTempFile(d.Name()):
			remove(path, "temporary file", &report.TempFiles)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("%w: walking %s: %w", ErrFileSystem, baseDir, walkErr)
	}
	return report, nil
}

package archiver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go-photos-archiver/internal/ledger"
	"go-photos-archiver/internal/models"
)

// DiskWriter lays items out as <base>/<year>/<month>/<day>/<filename> using
// the item's creation date in UTC. Month and day are not zero padded.
type DiskWriter struct {
	BaseDir string
}

// NewDiskArchiver wires a DiskWriter rooted at baseDir into a TaskArchiver.
func NewDiskArchiver(baseDir string, l ledger.Ledger, fetcher Fetcher, opts Options) *TaskArchiver {
	return NewTaskArchiver(DiskWriter{BaseDir: baseDir}, l, fetcher, opts)
}

func (w DiskWriter) ResolvePath(item models.MediaItem) (string, error) {
	name, err := itemFilename(item)
	if err != nil {
		return "", err
	}
	created, err := item.CreatedAt()
	if err != nil {
		return "", fmt.Errorf("%w: %s has unparseable creation time %q: %w", ErrInvalidItem, item.Filename, item.MediaMetadata.CreationTime, err)
	}
	created = created.UTC()

	dir := filepath.Join(w.BaseDir,
		strconv.Itoa(created.Year()),
		strconv.Itoa(int(created.Month())),
		strconv.Itoa(created.Day()),
	)
	// MkdirAll tolerates another task creating the same directory concurrently.
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrFileSystem, dir, err)
	}
	return filepath.Join(dir, name), nil
}

func (w DiskWriter) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat %s: %w", ErrFileSystem, path, err)
	}
}

// Write goes through a temporary file in the target directory and renames it
// into place, so readers never observe a partial file at path.
func (w DiskWriter) Write(_ context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrFileSystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %w", ErrFileSystem, dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing %s: %w", ErrFileSystem, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing %s: %w", ErrFileSystem, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod %s: %w", ErrFileSystem, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s to %s: %w", ErrFileSystem, tmpPath, path, err)
	}
	return nil
}

// LinkIntoAlbum creates albumPath/<filename> as a symlink to the absolute
// canonical path.
func (w DiskWriter) LinkIntoAlbum(_ context.Context, albumPath, canonicalPath, filename string) error {
	if err := os.MkdirAll(albumPath, 0755); err != nil {
		return fmt.Errorf("%w: creating album directory %s: %w", ErrFileSystem, albumPath, err)
	}
	target, err := filepath.Abs(canonicalPath)
	if err != nil {
		return fmt.Errorf("%w: resolving %s: %w", ErrFileSystem, canonicalPath, err)
	}

	link := filepath.Join(albumPath, filepath.Base(filename))
	if err := os.Symlink(target, link); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("%w: linking %s: %w", ErrFileSystem, link, err)
	}
	return nil
}

func itemFilename(item models.MediaItem) (string, error) {
	name := filepath.Base(item.Filename)
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %s has no usable filename %q", ErrInvalidItem, item.ID, item.Filename)
	}
	return name, nil
}

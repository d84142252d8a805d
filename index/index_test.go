package index

import (
	"path/filepath"
	"testing"

	"go-photos-archiver/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchivedItemsAreSearchable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")
	idx, err := OpenOrCreateIndex(path)
	require.NoError(t, err)

	archived := NewArchived(idx)
	item := models.MediaItem{
		ID:          "m1",
		Filename:    "IMG_0001.jpg",
		MimeType:    "image/jpeg",
		Description: "sunset over the harbour",
		MediaMetadata: models.MediaMetadata{
			CreationTime: "2021-03-09T10:20:30Z",
			Photo:        &models.PhotoMetadata{CameraMake: "Canon", CameraModel: "EOS R"},
		},
	}
	require.NoError(t, archived.IndexArchived(item, "/archive/2021/3/9/IMG_0001.jpg", "Holidays"))

	res, err := SearchIndex(idx, "harbour", 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "m1", res.Hits[0].ID)
	assert.Equal(t, "/archive/2021/3/9/IMG_0001.jpg", res.Hits[0].Fields["filePath"])

	res, err = SearchIndex(idx, "+cameraMake:canon", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)

	res, err = SearchIndex(idx, "kittens", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Total)

	require.NoError(t, idx.Close())

	// reopening finds the existing documents
	idx, err = OpenOrCreateIndex(path)
	require.NoError(t, err)
	defer idx.Close()
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestFromMediaItem(t *testing.T) {
	item := models.MediaItem{
		ID:       "v1",
		Filename: "clip.mp4",
		MediaMetadata: models.MediaMetadata{
			CreationTime: "not a time",
			Video:        &models.VideoMetadata{CameraMake: "GoPro"},
		},
	}
	doc := FromMediaItem(item, "/p", "")
	assert.Equal(t, "GoPro", doc.CameraMake)
	assert.True(t, doc.CreatedAt.IsZero())
	assert.Empty(t, doc.Album)
}

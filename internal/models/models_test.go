package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaItemIsReady(t *testing.T) {
	tests := []struct {
		name string
		item MediaItem
		want bool
	}{
		{"photo", MediaItem{MediaMetadata: MediaMetadata{Photo: &PhotoMetadata{}}}, true},
		{"no metadata block", MediaItem{}, true},
		{"video ready", MediaItem{MediaMetadata: MediaMetadata{Video: &VideoMetadata{Status: VideoStatusReady}}}, true},
		{"video processing", MediaItem{MediaMetadata: MediaMetadata{Video: &VideoMetadata{Status: VideoStatusProcessing}}}, false},
		{"video failed", MediaItem{MediaMetadata: MediaMetadata{Video: &VideoMetadata{Status: VideoStatusFailed}}}, false},
		{"video unspecified", MediaItem{MediaMetadata: MediaMetadata{Video: &VideoMetadata{}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.IsReady())
		})
	}
}

func TestMediaItemDownloadURL(t *testing.T) {
	photo := MediaItem{BaseURL: "https://lh3.example/abc", MediaMetadata: MediaMetadata{Photo: &PhotoMetadata{}}}
	video := MediaItem{BaseURL: "https://lh3.example/xyz", MediaMetadata: MediaMetadata{Video: &VideoMetadata{Status: VideoStatusReady}}}

	assert.Equal(t, "https://lh3.example/abc=d", photo.DownloadURL())
	assert.Equal(t, "https://lh3.example/xyz=dv", video.DownloadURL())
}

func TestMediaItemCreatedAt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{"whole seconds", "2021-01-01T00:00:00Z", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"fractional seconds", "2021-03-09T10:20:30.123Z", time.Date(2021, 3, 9, 10, 20, 30, 123000000, time.UTC), false},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := MediaItem{MediaMetadata: MediaMetadata{CreationTime: tt.value}}
			got, err := item.CreatedAt()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestCameraFields(t *testing.T) {
	photo := MediaItem{MediaMetadata: MediaMetadata{Photo: &PhotoMetadata{CameraMake: "Canon", CameraModel: "EOS"}}}
	video := MediaItem{MediaMetadata: MediaMetadata{Video: &VideoMetadata{CameraMake: "GoPro", CameraModel: "Hero"}}}

	assert.Equal(t, "Canon", photo.CameraMake())
	assert.Equal(t, "EOS", photo.CameraModel())
	assert.Equal(t, "GoPro", video.CameraMake())
	assert.Equal(t, "Hero", video.CameraModel())
	assert.Empty(t, MediaItem{}.CameraMake())
}

func TestAlbumDisplayTitle(t *testing.T) {
	assert.Equal(t, "Holidays", Album{ID: "a1", Title: "Holidays"}.DisplayTitle())
	assert.Equal(t, "Album ID: a1", Album{ID: "a1"}.DisplayTitle())
}

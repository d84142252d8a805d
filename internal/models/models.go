package models

import (
	"time"
)

type (
	Config struct {
		// Connection/Auth
		AccessToken string `toml:"AccessToken"`
		ApiBaseUrl  string `toml:"ApiBaseUrl"`

		// Paths
		SavePath       string `toml:"SavePath"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`
		MetricsFile    string `toml:"MetricsFile"`

		// Ledger
		LedgerBackend string `toml:"LedgerBackend"` // sqlite, bitcask, bolt or memory

		// Archive destination
		Backend  string `toml:"Backend"` // disk, s3 or null
		S3Bucket string `toml:"S3Bucket"`
		S3Region string `toml:"S3Region"`
		S3Prefix string `toml:"S3Prefix"`

		// Archiver Behavior
		Concurrency  int `toml:"Concurrency"`
		MaxAttempts  int `toml:"MaxAttempts"`
		RetryDelayMs int `toml:"RetryDelayMs"`

		// API Query Behavior
		PageSize            int  `toml:"PageSize"`
		ApiDelayMs          int  `toml:"ApiDelayMs"`
		ApiClientTimeoutSec int  `toml:"ApiClientTimeoutSec"`
		LogApiRequests      bool `toml:"LogApiRequests"`
	}

	// MediaItem is a single photo or video as returned by the Photos Library API.
	MediaItem struct {
		ID            string        `json:"id"`
		ProductURL    string        `json:"productUrl,omitempty"`
		BaseURL       string        `json:"baseUrl"`
		MimeType      string        `json:"mimeType"`
		Filename      string        `json:"filename"`
		Description   string        `json:"description,omitempty"`
		MediaMetadata MediaMetadata `json:"mediaMetadata"`
	}

	MediaMetadata struct {
		CreationTime string         `json:"creationTime"`
		Width        string         `json:"width,omitempty"`
		Height       string         `json:"height,omitempty"`
		Photo        *PhotoMetadata `json:"photo,omitempty"`
		Video        *VideoMetadata `json:"video,omitempty"`
	}

	PhotoMetadata struct {
		CameraMake      string  `json:"cameraMake,omitempty"`
		CameraModel     string  `json:"cameraModel,omitempty"`
		FocalLength     float64 `json:"focalLength,omitempty"`
		ApertureFNumber float64 `json:"apertureFNumber,omitempty"`
		IsoEquivalent   int     `json:"isoEquivalent,omitempty"`
		ExposureTime    string  `json:"exposureTime,omitempty"`
	}

	VideoMetadata struct {
		CameraMake  string                `json:"cameraMake,omitempty"`
		CameraModel string                `json:"cameraModel,omitempty"`
		Fps         float64               `json:"fps,omitempty"`
		Status      VideoProcessingStatus `json:"status,omitempty"`
	}

	Album struct {
		ID                    string `json:"id"`
		Title                 string `json:"title,omitempty"`
		ProductURL            string `json:"productUrl,omitempty"`
		MediaItemsCount       string `json:"mediaItemsCount,omitempty"`
		CoverPhotoBaseURL     string `json:"coverPhotoBaseUrl,omitempty"`
		CoverPhotoMediaItemID string `json:"coverPhotoMediaItemId,omitempty"`
	}

	// Api Calls and Responses
	MediaItemsResponse struct {
		MediaItems    []MediaItem `json:"mediaItems"`
		NextPageToken string      `json:"nextPageToken,omitempty"`
	}

	AlbumsResponse struct {
		Albums        []Album `json:"albums"`
		NextPageToken string  `json:"nextPageToken,omitempty"`
	}

	SearchRequest struct {
		AlbumID   string   `json:"albumId,omitempty"`
		PageSize  int      `json:"pageSize,omitempty"`
		PageToken string   `json:"pageToken,omitempty"`
		Filters   *Filters `json:"filters,omitempty"`
	}

	Filters struct {
		DateFilter *DateFilter `json:"dateFilter,omitempty"`
	}
)

type VideoProcessingStatus string

const (
	VideoStatusUnspecified VideoProcessingStatus = "UNSPECIFIED"
	VideoStatusProcessing  VideoProcessingStatus = "PROCESSING"
	VideoStatusReady       VideoProcessingStatus = "READY"
	VideoStatusFailed      VideoProcessingStatus = "FAILED"
)

// IsVideo reports whether the item carries video metadata.
func (m MediaItem) IsVideo() bool {
	return m.MediaMetadata.Video != nil
}

// IsReady reports whether the item's bytes can be fetched. Photos are always
// ready; videos only once processing has finished.
func (m MediaItem) IsReady() bool {
	if !m.IsVideo() {
		return true
	}
	return m.MediaMetadata.Video.Status == VideoStatusReady
}

// DownloadURL returns the base URL with the suffix that requests the original
// bytes (=d for photos, =dv for videos).
func (m MediaItem) DownloadURL() string {
	if m.IsVideo() {
		return m.BaseURL + "=dv"
	}
	return m.BaseURL + "=d"
}

// CreatedAt parses the creation timestamp. Both RFC3339 with and without
// fractional seconds are accepted.
func (m MediaItem) CreatedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.MediaMetadata.CreationTime)
}

// CameraMake and CameraModel return whichever metadata block is populated.
func (m MediaItem) CameraMake() string {
	switch {
	case m.MediaMetadata.Photo != nil:
		return m.MediaMetadata.Photo.CameraMake
	case m.MediaMetadata.Video != nil:
		return m.MediaMetadata.Video.CameraMake
	}
	return ""
}

func (m MediaItem) CameraModel() string {
	switch {
	case m.MediaMetadata.Photo != nil:
		return m.MediaMetadata.Photo.CameraModel
	case m.MediaMetadata.Video != nil:
		return m.MediaMetadata.Video.CameraModel
	}
	return ""
}

// DisplayTitle is the album title, or a placeholder built from the ID for
// untitled albums.
func (a Album) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return "Album ID: " + a.ID
}

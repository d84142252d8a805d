package index

import (
	"errors"
	"time"

	"go-photos-archiver/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

const defaultIndexPath = "media_items.bleve"

// Item is the searchable view of an archived media item. Fields are queried
// by their JSON names, e.g. '+cameraMake:canon' or '+album:holidays'.
type Item struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	Description string    `json:"description,omitempty"`
	FilePath    string    `json:"filePath"`
	Album       string    `json:"album,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
}

// FromMediaItem builds the index document for an item archived at path.
func FromMediaItem(item models.MediaItem, path, album string) Item {
	doc := Item{
		ID:          item.ID,
		Filename:    item.Filename,
		MimeType:    item.MimeType,
		Description: item.Description,
		FilePath:    path,
		Album:       album,
		CameraMake:  item.CameraMake(),
		CameraModel: item.CameraModel(),
	}
	if created, err := item.CreatedAt(); err == nil {
		doc.CreatedAt = created
	}
	return doc
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	idx, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		log.Debugf("Creating new index at: %s", indexPath)
		return bleve.New(indexPath, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("Opened existing index at: %s", indexPath)
	return idx, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(idx bleve.Index, item Item) error {
	return idx.Index(item.ID, item)
}

// SearchIndex runs a query string search and returns up to size hits with
// all stored fields.
func SearchIndex(idx bleve.Index, query string, size int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	if size > 0 {
		req.Size = size
	}
	req.Fields = []string{"*"}
	return idx.Search(req)
}

// Archived indexes items as they are archived. The album recorded is the one
// the item was first downloaded through.
type Archived struct {
	idx bleve.Index
}

func NewArchived(idx bleve.Index) *Archived {
	return &Archived{idx: idx}
}

func (a *Archived) IndexArchived(item models.MediaItem, path, album string) error {
	return IndexItem(a.idx, FromMediaItem(item, path, album))
}

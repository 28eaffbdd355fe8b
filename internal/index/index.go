// Package index keeps a local full-text index over saved wallpapers.
package index

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go-wallhaven-browser/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

// Document is what gets indexed for one wallpaper.
type Document struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Purity     string   `json:"purity"`
	Resolution string   `json:"resolution"`
	Colors     []string `json:"colors"`
	Source     string   `json:"source"`
}

// Index wraps a bleve index.
type Index struct {
	idx bleve.Index
}

// Open opens the index at path, creating it if needed.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		log.Debugf("Creating search index at %s", path)
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// NewMemOnly returns an index that lives in memory.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// DocumentFor builds the indexed form of w.
func DocumentFor(w models.Wallpaper) Document {
	tags := make([]string, 0, len(w.Tags))
	for _, t := range w.Tags {
		tags = append(tags, t.Name)
	}
	return Document{
		ID:         w.ID,
		Title:      w.Title,
		Author:     w.Author,
		Tags:       tags,
		Category:   w.Category,
		Purity:     w.Purity,
		Resolution: w.Resolution,
		Colors:     w.Colors,
		Source:     w.Source,
	}
}

// IndexWallpaper adds or replaces w.
func (i *Index) IndexWallpaper(w models.Wallpaper) error {
	if w.ID == "" {
		return errors.New("wallpaper has no id")
	}
	return i.idx.Index(w.ID, DocumentFor(w))
}

// Delete removes id. Unknown ids are ignored.
func (i *Index) Delete(id string) error {
	return i.idx.Delete(id)
}

// Rebuild replaces the index contents with favs.
func (i *Index) Rebuild(favs []models.Favorite) error {
	ids, err := i.allIDs()
	if err != nil {
		return err
	}
	batch := i.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	for _, f := range favs {
		if err := batch.Index(f.ID, DocumentFor(f.Wallpaper)); err != nil {
			return err
		}
	}
	return i.idx.Batch(batch)
}

func (i *Index) allIDs() ([]string, error) {
	count, err := i.idx.DocCount()
	if err != nil || count == 0 {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// Search runs a query string search and returns matching ids, best first.
func (i *Index) Search(q string, limit int) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit, 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", q, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// Count returns the number of indexed wallpapers.
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

// Exists reports whether an index directory is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

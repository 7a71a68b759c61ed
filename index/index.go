package index

import (
	"os"
	"path/filepath"

	"go-voxura-native/internal/modarchive"
	"go-voxura-native/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

const defaultIndexPath = "mods.bleve"

// Item is one indexed mod archive. Fields are searchable by their JSON tag
// names, e.g. '+loader:fabric' or '+modId:sodium'.
type Item struct {
	ID            string `json:"id"`   // Content digest
	Type          string `json:"type"` // Always "mod"
	Name          string `json:"name"` // Display name from the descriptor, else the file name
	FileName      string `json:"fileName"`
	Description   string `json:"description,omitempty"`
	FilePath      string `json:"filePath"`
	DirectoryPath string `json:"directoryPath,omitempty"`
	Loader        string `json:"loader,omitempty"`
	ModID         string `json:"modId,omitempty"`
	Version       string `json:"version,omitempty"`
	HasIcon       bool   `json:"hasIcon"`
}

// ItemFromRecord projects a resolved mod into an index item.
func ItemFromRecord(rec models.ModRecord) Item {
	info := modarchive.ParseLoaderInfo(rec.MetadataKind, rec.Metadata)
	return Item{
		ID:            rec.Digest,
		Type:          "mod",
		Name:          info.DisplayName(rec.Name),
		FileName:      rec.Name,
		Description:   info.Description,
		FilePath:      rec.Path,
		DirectoryPath: filepath.Dir(rec.Path),
		Loader:        info.Loader,
		ModID:         info.ID,
		Version:       info.Version,
		HasIcon:       len(rec.Icon) > 0,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Infof("Creating new index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		index, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Debugf("Opened existing index at: %s", indexPath)
	}
	return index, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(index bleve.Index, item Item) error {
	return index.Index(item.ID, item)
}

// IndexRecords indexes a scan result in one batch.
func IndexRecords(index bleve.Index, recs []models.ModRecord) error {
	batch := index.NewBatch()
	for _, rec := range recs {
		item := ItemFromRecord(rec)
		if err := batch.Index(item.ID, item); err != nil {
			return err
		}
	}
	return index.Batch(batch)
}

// SearchIndex performs a search query against the index.
func SearchIndex(index bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"}
	return index.Search(searchRequest)
}

// DeleteIndex removes the index directory.
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Infof("Deleting index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}

// internal/common/store/catalog.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"
)

// CatalogSource is the candidate-pool capability the recommendation workers
// depend on.
type CatalogSource interface {
	FetchAll(ctx context.Context) ([]models.CandidateMovie, error)
}

// maxCatalogSize bounds a single fetch; the synced catalog stays well under
// the ES result-window default.
const maxCatalogSize = 10000

// CatalogIndex stores the synced movie catalog in an Elasticsearch index.
type CatalogIndex struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewCatalogIndex(es *database.ElasticsearchClient, index string, log logger.Logger) *CatalogIndex {
	return &CatalogIndex{es: es, index: index, logger: log}
}

// ReplaceAll bulk-indexes the movies, overwriting documents by movie ID.
func (c *CatalogIndex) ReplaceAll(ctx context.Context, movies []models.CandidateMovie) error {
	if len(movies) == 0 {
		return errors.NewCatalogIndexError(fmt.Errorf("refusing to index an empty catalog"))
	}

	var buf bytes.Buffer
	for _, m := range movies {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, c.index, m.ID)
		buf.WriteString(meta)
		buf.WriteByte('\n')

		doc, err := json.Marshal(m)
		if err != nil {
			return errors.NewCatalogIndexError(fmt.Errorf("encode movie %s: %w", m.ID, err))
		}
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := c.es.Client.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Client.Bulk.WithContext(ctx),
		c.es.Client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return errors.NewCatalogIndexError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return errors.NewCatalogIndexError(fmt.Errorf("bulk index: %s: %s", res.Status(), body))
	}

	c.logger.Info("Replaced catalog index", map[string]interface{}{
		"index":  c.index,
		"movies": len(movies),
	})
	return nil
}

// FetchAll returns every movie in the catalog index. An empty or missing
// index means the catalog was never synced, which is a distinct error from
// the index being unreachable.
func (c *CatalogIndex) FetchAll(ctx context.Context) ([]models.CandidateMovie, error) {
	query := fmt.Sprintf(`{"query":{"match_all":{}},"size":%d}`, maxCatalogSize)

	res, err := c.es.Client.Search(
		c.es.Client.Search.WithContext(ctx),
		c.es.Client.Search.WithIndex(c.index),
		c.es.Client.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, errors.NewCatalogIndexError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, errors.NewCatalogNotSyncedError(c.index)
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, errors.NewCatalogIndexError(fmt.Errorf("search: %s: %s", res.Status(), body))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.CandidateMovie `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewCatalogIndexError(fmt.Errorf("decode search response: %w", err))
	}

	if len(parsed.Hits.Hits) == 0 {
		return nil, errors.NewCatalogNotSyncedError(c.index)
	}

	movies := make([]models.CandidateMovie, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		movies = append(movies, hit.Source)
	}
	return movies, nil
}

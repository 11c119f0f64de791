// Package tmdb fetches the movie catalog from The Movie Database API and
// caches it in Redis.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"recommender-workers/internal/common/config"
	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/errors"
	commonhttp "recommender-workers/internal/common/http"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"
)

const (
	catalogCacheKey  = "movies:all"
	genreMapCacheKey = "tmdb:genre_map"

	detailConcurrency = 5
)

// Client wraps the TMDB REST API. Discover pages are fetched by descending
// popularity and enriched with per-movie details.
type Client struct {
	httpClient *commonhttp.Client
	redis      *database.RedisClient
	logger     logger.Logger
	cfg        config.TMDBConfig
}

func NewClient(cfg config.TMDBConfig, redis *database.RedisClient, log logger.Logger) *Client {
	return &Client{
		httpClient: commonhttp.NewClient(config.GetDuration(cfg.Timeout)),
		redis:      redis,
		logger:     log,
		cfg:        cfg,
	}
}

type discoverResponse struct {
	Results []discoverMovie `json:"results"`
}

type discoverMovie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	GenreIDs    []int  `json:"genre_ids"`
}

type detailsResponse struct {
	Runtime             int `json:"runtime"`
	ProductionCountries []struct {
		ISO string `json:"iso_3166_1"`
	} `json:"production_countries"`
}

type genreListResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// CachedCatalog returns the cached catalog, or nil if the cache is cold.
func (c *Client) CachedCatalog(ctx context.Context) ([]models.CandidateMovie, error) {
	if c.redis == nil {
		return nil, nil
	}
	raw, err := c.redis.Get(ctx, catalogCacheKey)
	if err != nil {
		return nil, nil // treat any miss or read error as cold cache
	}

	var movies []models.CandidateMovie
	if err := json.Unmarshal([]byte(raw), &movies); err != nil {
		c.logger.Warn("Discarding corrupt catalog cache", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}
	return movies, nil
}

// FetchCatalog pulls the configured number of discover pages, enriches each
// movie with runtime and production countries, and refreshes the cache.
// Movies whose details return 404 are skipped.
func (c *Client) FetchCatalog(ctx context.Context) ([]models.CandidateMovie, error) {
	genreMap, err := c.GenreMap(ctx)
	if err != nil {
		return nil, err
	}

	var raw []discoverMovie
	for page := 1; page <= c.cfg.DiscoverPages; page++ {
		pageMovies, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		raw = append(raw, pageMovies...)
	}

	movies := c.fetchDetails(ctx, raw, genreMap)

	if c.redis != nil {
		if encoded, err := json.Marshal(movies); err == nil {
			ttl := time.Duration(c.cfg.CacheTTLHours) * time.Hour
			if err := c.redis.Set(ctx, catalogCacheKey, encoded, ttl); err != nil {
				c.logger.Warn("Catalog cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	c.logger.Info("Fetched movie catalog", map[string]interface{}{
		"discovered": len(raw),
		"kept":       len(movies),
	})
	return movies, nil
}

// GenreMap resolves TMDB genre IDs to names, cached for 30 days.
func (c *Client) GenreMap(ctx context.Context) (map[int]string, error) {
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, genreMapCacheKey); err == nil {
			var cached map[int]string
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	var parsed genreListResponse
	if err := c.getJSON(ctx, "/genre/movie/list", nil, &parsed); err != nil {
		return nil, err
	}

	genreMap := make(map[int]string, len(parsed.Genres))
	for _, g := range parsed.Genres {
		genreMap[g.ID] = g.Name
	}

	if c.redis != nil {
		if encoded, err := json.Marshal(genreMap); err == nil {
			_ = c.redis.Set(ctx, genreMapCacheKey, encoded, 30*24*time.Hour)
		}
	}
	return genreMap, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]discoverMovie, error) {
	params := url.Values{
		"sort_by": {"popularity.desc"},
		"page":    {strconv.Itoa(page)},
	}
	var parsed discoverResponse
	if err := c.getJSON(ctx, "/discover/movie", params, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// fetchDetails enriches discover results with bounded concurrency. A 404 on
// a detail lookup drops that movie; other errors drop it with a warning so a
// single flaky lookup cannot fail a whole catalog sync.
func (c *Client) fetchDetails(ctx context.Context, raw []discoverMovie, genreMap map[int]string) []models.CandidateMovie {
	results := make([]*models.CandidateMovie, len(raw))

	sem := make(chan struct{}, detailConcurrency)
	var wg sync.WaitGroup
	for i, m := range raw {
		wg.Add(1)
		go func(i int, m discoverMovie) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			movie, err := c.fetchOne(ctx, m, genreMap)
			if err != nil {
				c.logger.Warn("Skipping movie with failed detail lookup", map[string]interface{}{
					"movieId": m.ID,
					"error":   err.Error(),
				})
				return
			}
			results[i] = movie
		}(i, m)
	}
	wg.Wait()

	movies := make([]models.CandidateMovie, 0, len(raw))
	for _, m := range results {
		if m != nil {
			movies = append(movies, *m)
		}
	}
	return movies
}

func (c *Client) fetchOne(ctx context.Context, m discoverMovie, genreMap map[int]string) (*models.CandidateMovie, error) {
	var details detailsResponse
	err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", m.ID), nil, &details)
	if err != nil {
		if stdErr, ok := err.(*errors.StandardError); ok && strings.Contains(stdErr.Details, "status 404") {
			return nil, nil
		}
		return nil, err
	}

	year := 0
	if len(m.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(m.ReleaseDate[:4])
	}

	genres := make([]string, 0, len(m.GenreIDs))
	for _, id := range m.GenreIDs {
		if name, ok := genreMap[id]; ok {
			genres = append(genres, name)
		} else {
			genres = append(genres, strconv.Itoa(id))
		}
	}

	countries := make([]string, 0, len(details.ProductionCountries))
	for _, pc := range details.ProductionCountries {
		countries = append(countries, pc.ISO)
	}

	return &models.CandidateMovie{
		ID:          strconv.Itoa(m.ID),
		Title:       m.Title,
		Description: m.Overview,
		Genres:      genres,
		Countries:   countries,
		Year:        year,
		Duration:    details.Runtime,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("language", "en-US")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.NewCandidateSourceError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewCandidateSourceError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewCandidateSourceError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.NewCandidateSourceError(fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewCandidateSourceError(fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

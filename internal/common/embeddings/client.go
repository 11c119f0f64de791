// Package embeddings provides a batched, cached client for an
// OpenAI-compatible text-embedding endpoint.
package embeddings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"recommender-workers/internal/common/config"
	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/errors"
	commonhttp "recommender-workers/internal/common/http"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/metrics"
)

// Provider is the capability the workers depend on. The production
// implementation is Client; tests substitute deterministic in-memory ones.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Client calls the embedding endpoint in batches, deduplicates identical
// texts within a request, and caches vectors in Redis keyed by text hash.
type Client struct {
	httpClient *commonhttp.Client
	redis      *database.RedisClient
	logger     logger.Logger
	cfg        config.EmbeddingsConfig
}

func NewClient(cfg config.EmbeddingsConfig, redis *database.RedisClient, log logger.Logger) *Client {
	return &Client{
		httpClient: commonhttp.NewClient(config.GetDuration(cfg.Timeout)),
		redis:      redis,
		logger:     log,
		cfg:        cfg,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order. Identical texts
// are embedded once. Any failed batch fails the whole call; partial results
// are never returned.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Request-level dedupe: identical texts share one lookup and one vector.
	textToIndices := make(map[string][]int)
	uniqueTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if _, seen := textToIndices[text]; !seen {
			uniqueTexts = append(uniqueTexts, text)
		}
		textToIndices[text] = append(textToIndices[text], i)
	}

	uniqueResults := make([][]float64, len(uniqueTexts))
	c.loadFromCache(ctx, uniqueTexts, uniqueResults)

	var uncachedIdx []int
	for i, vec := range uniqueResults {
		if vec == nil {
			uncachedIdx = append(uncachedIdx, i)
		}
	}

	if err := c.embedUncached(ctx, uniqueTexts, uniqueResults, uncachedIdx); err != nil {
		return nil, err
	}

	// Map unique results back to the original order.
	results := make([][]float64, len(texts))
	for i, text := range uniqueTexts {
		for _, orig := range textToIndices[text] {
			results[orig] = uniqueResults[i]
		}
	}
	return results, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func (c *Client) loadFromCache(ctx context.Context, uniqueTexts []string, uniqueResults [][]float64) {
	if c.redis == nil {
		return
	}

	keys := make([]string, len(uniqueTexts))
	for i, text := range uniqueTexts {
		keys[i] = cacheKey(text)
	}

	cached, err := c.redis.GetClient().MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Embedding cache read failed, treating all as misses", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for i, raw := range cached {
		str, ok := raw.(string)
		if !ok {
			metrics.EmbeddingCacheLookups.WithLabelValues("miss").Inc()
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(str), &vec); err != nil {
			metrics.EmbeddingCacheLookups.WithLabelValues("miss").Inc()
			continue
		}
		uniqueResults[i] = vec
		metrics.EmbeddingCacheLookups.WithLabelValues("hit").Inc()
	}
}

// embedUncached splits the cache misses into batches and embeds them with
// bounded concurrency.
func (c *Client) embedUncached(ctx context.Context, uniqueTexts []string, uniqueResults [][]float64, uncachedIdx []int) error {
	if len(uncachedIdx) == 0 {
		return nil
	}

	batchSize := c.cfg.BatchSize
	var batches [][]int
	for start := 0; start < len(uncachedIdx); start += batchSize {
		end := start + batchSize
		if end > len(uncachedIdx) {
			end = len(uncachedIdx)
		}
		batches = append(batches, uncachedIdx[start:end])
	}

	sem := make(chan struct{}, c.cfg.MaxConcurrency)
	errCh := make(chan error, len(batches))
	var wg sync.WaitGroup

	for _, batch := range batches {
		wg.Add(1)
		go func(batch []int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.embedBatch(ctx, uniqueTexts, uniqueResults, batch); err != nil {
				errCh <- err
			}
		}(batch)
	}
	wg.Wait()
	close(errCh)

	// One failed batch fails the whole request; items are never dropped.
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

func (c *Client) embedBatch(ctx context.Context, uniqueTexts []string, uniqueResults [][]float64, batch []int) error {
	input := make([]string, len(batch))
	for i, idx := range batch {
		input[i] = uniqueTexts[idx]
	}

	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: input})
	if err != nil {
		return errors.NewEmbeddingInputInvalidError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return errors.NewEmbeddingUnavailableError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.EmbeddingBatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewEmbeddingTimeoutError()
		}
		return errors.NewEmbeddingUnavailableError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewEmbeddingUnavailableError(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to parse
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return errors.NewEmbeddingInputInvalidError(fmt.Sprintf("status %d: %s", resp.StatusCode, respBody))
	default:
		return errors.NewEmbeddingUnavailableError(fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return errors.NewEmbeddingUnavailableError(fmt.Errorf("malformed embedding response: %w", err))
	}
	if len(parsed.Data) != len(batch) {
		return errors.NewEmbeddingUnavailableError(
			fmt.Errorf("embedding response has %d vectors for %d inputs", len(parsed.Data), len(batch)))
	}

	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(batch) {
			return errors.NewEmbeddingUnavailableError(fmt.Errorf("embedding response index %d out of range", item.Index))
		}
		if c.cfg.Dimension > 0 && len(item.Embedding) != c.cfg.Dimension {
			return errors.NewEmbeddingInputInvalidError(
				fmt.Sprintf("provider returned dimension %d, expected %d", len(item.Embedding), c.cfg.Dimension))
		}
		uniqueResults[batch[item.Index]] = item.Embedding
	}

	c.writeToCache(ctx, uniqueTexts, uniqueResults, batch)
	return nil
}

func (c *Client) writeToCache(ctx context.Context, uniqueTexts []string, uniqueResults [][]float64, batch []int) {
	if c.redis == nil {
		return
	}

	ttl := time.Duration(c.cfg.CacheTTLHours) * time.Hour
	pipe := c.redis.GetClient().Pipeline()
	for _, idx := range batch {
		raw, err := json.Marshal(uniqueResults[idx])
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(uniqueTexts[idx]), raw, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Embedding cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

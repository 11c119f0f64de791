// test/e2e/e2e_test.go
//
// Runs the whole recommendation pipeline in-process: a watch-history upload
// is clustered into a taste profile, the profile is fetched back, a candidate
// pool is filtered against the watched list, the survivors are scored against
// the profile, the shortlist is reranked by a stubbed chat-completions
// endpoint, and the result is delivered as a digest. External collaborators
// (Postgres, the embedding provider, the LLM, SES) are replaced with
// deterministic in-memory substitutes; Redis runs as miniredis.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"
	"recommender-workers/internal/taste"

	sendrecommendationdigest "recommender-workers/internal/workers/notification/send-recommendation-digest"
	buildtasteprofile "recommender-workers/internal/workers/profile/build-taste-profile"
	fetchtasteprofile "recommender-workers/internal/workers/profile/fetch-taste-profile"
	filtercandidates "recommender-workers/internal/workers/recommendation/filter-candidates"
	rerankrecommendations "recommender-workers/internal/workers/recommendation/rerank-recommendations"
	scorecandidates "recommender-workers/internal/workers/recommendation/score-candidates"
)

// memoryProfileStore is an in-memory store.ProfileStore.
type memoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{profiles: make(map[string]*models.UserProfile)}
}

func (s *memoryProfileStore) Save(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *memoryProfileStore) Get(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile for user %s not found", userID)
	}
	return profile, nil
}

func (s *memoryProfileStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

// genreEmbedder maps embedding texts onto a fixed 3-dimensional space by
// genre keyword, so cluster geometry is predictable.
type genreEmbedder struct{}

func (genreEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		switch {
		case strings.Contains(text, "Action"):
			vectors[i] = []float64{1, 0.2, 0}
		case strings.Contains(text, "Drama"):
			vectors[i] = []float64{0.2, 1, 0}
		default:
			vectors[i] = []float64{0, 0, 1}
		}
	}
	return vectors, nil
}

type capturingEmailSender struct {
	to   string
	body string
}

func (s *capturingEmailSender) SendEmail(_ context.Context, _, to, _, htmlBody string) (string, error) {
	s.to = to
	s.body = htmlBody
	return "ses-message-1", nil
}

type disabledSMSSender struct{}

func (disabledSMSSender) SendSMS(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("sms disabled in this test")
}

func historyRow(title, genre string, year int, rating float64) map[string]interface{} {
	return map[string]interface{}{
		"title":       title,
		"description": fmt.Sprintf("A %s film.", strings.ToLower(genre)),
		"genres":      []interface{}{genre},
		"countries":   []interface{}{"US"},
		"year":        float64(year),
		"duration":    float64(120),
		"rating":      rating,
		"watched_at":  "2024-05-01",
	}
}

func candidate(id, title string, year int, embedding []float64, genres ...string) models.CandidateMovie {
	return models.CandidateMovie{
		ID:        id,
		Title:     title,
		Year:      year,
		Genres:    genres,
		Countries: []string{"US"},
		Duration:  115,
		Embedding: embedding,
	}
}

func TestRecommendationPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log := logger.NewTestLogger(t)
	profiles := newMemoryProfileStore()

	mr := miniredis.RunT(t)
	redisClient := &database.RedisClient{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}

	const userID = "e2e-user"

	// --- 1. Build the taste profile from a six-movie history ---------------

	clusterer := taste.New(log, taste.DefaultOptions())
	builder := buildtasteprofile.NewHandler(
		buildtasteprofile.LoadConfig(),
		profiles,
		redisClient,
		genreEmbedder{},
		clusterer,
		log,
	)

	history := []map[string]interface{}{
		historyRow("Die Hard", "Action", 1988, 9.0),
		historyRow("Heat", "Action", 1995, 8.5),
		historyRow("Mad Max: Fury Road", "Action", 2015, 8.8),
		historyRow("The Godfather", "Drama", 1972, 9.2),
		historyRow("Moonlight", "Drama", 2016, 8.1),
		historyRow("Manchester by the Sea", "Drama", 2016, 8.4),
	}

	buildOut, err := builder.Execute(ctx, &buildtasteprofile.Input{UserID: userID, WatchHistory: history})
	require.NoError(t, err)
	assert.True(t, buildOut.ProfileBuilt)
	assert.Equal(t, string(taste.StrategySingle), buildOut.Strategy, "six movies stay below the k-means threshold")
	assert.Equal(t, 1, buildOut.ClusterCount)
	assert.Equal(t, 6, buildOut.HighRatedCount)

	// --- 2. Fetch the profile back -----------------------------------------

	fetcher := fetchtasteprofile.NewHandler(
		&fetchtasteprofile.Config{Timeout: 10 * time.Second},
		profiles,
		log,
	)
	fetchOut, err := fetcher.Execute(ctx, &fetchtasteprofile.Input{UserID: userID})
	require.NoError(t, err)
	require.NotNil(t, fetchOut.Profile)
	assert.Equal(t, 1, fetchOut.ClusterCount)
	assert.False(t, fetchOut.DemoProfile)

	// --- 3. Filter the candidate pool --------------------------------------

	// One near-duplicate of a watched title plus nine distinct candidates.
	pool := []models.CandidateMovie{
		candidate("c1", "Die Hardd", 1988, []float64{1, 0.2, 0}, "Action"),
		candidate("c2", "Speed", 1994, []float64{0.95, 0.2, 0}, "Action"),
		candidate("c3", "Ronin", 1998, []float64{0.9, 0.3, 0}, "Action"),
		candidate("c4", "The Rock", 1996, []float64{0.85, 0.15, 0}, "Action"),
		candidate("c5", "Collateral", 2004, []float64{0.8, 0.7, 0.1}, "Action", "Drama"),
		candidate("c6", "Magnolia", 1999, []float64{0.2, 0.95, 0}, "Drama"),
		candidate("c7", "The Pianist", 2002, []float64{0.15, 0.9, 0}, "Drama"),
		candidate("c8", "Amadeus", 1984, []float64{0.25, 0.85, 0}, "Drama"),
		candidate("c9", "Paris, Texas", 1984, []float64{0.1, 0.8, 0.05}, "Drama"),
		candidate("c10", "Solaris", 1972, []float64{0, 0, 1}, "Sci-Fi"),
	}
	watched := make([]models.WatchedTitle, 0, len(history))
	for _, row := range history {
		watched = append(watched, models.WatchedTitle{
			Title: row["title"].(string),
			Year:  int(row["year"].(float64)),
		})
	}

	filterer := filtercandidates.NewHandler(
		&filtercandidates.Config{Timeout: 30 * time.Second, FuzzyMatchCutoff: 85},
		nil,
		log,
	)
	filterOut, err := filterer.Execute(ctx, &filtercandidates.Input{
		UserID:     userID,
		Candidates: pool,
		Watched:    watched,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, filterOut.RemovedWatched, "the Die Hard near-duplicate is fuzzy-excluded")
	assert.Equal(t, 9, filterOut.CandidateCount)
	for _, c := range filterOut.Candidates {
		assert.NotEqual(t, "Die Hardd", c.Title)
	}

	// --- 4. Score the survivors against the profile ------------------------

	scorer := scorecandidates.NewHandler(
		&scorecandidates.Config{Timeout: 60 * time.Second, SoftmaxAlpha: 5.0, TopN: 10},
		profiles,
		genreEmbedder{},
		log,
	)
	scoreOut, err := scorer.Execute(ctx, &scorecandidates.Input{
		UserID:     userID,
		Profile:    fetchOut.Profile,
		Candidates: filterOut.Candidates,
	})
	require.NoError(t, err)
	require.Len(t, scoreOut.Recommendations, 9)

	for i, rec := range scoreOut.Recommendations {
		assert.GreaterOrEqual(t, rec.Score, 0.0)
		assert.LessOrEqual(t, rec.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, scoreOut.Recommendations[i-1].Score, rec.Score)
		}
	}
	// The mixed action/drama history blends into one centroid, so the
	// action+drama candidate sits closest and the orthogonal one last.
	assert.Equal(t, "Collateral", scoreOut.Recommendations[0].Title)
	assert.Equal(t, "Solaris", scoreOut.Recommendations[8].Title)

	// --- 5. Rerank the shortlist via a stubbed chat-completions endpoint ---

	ranking := map[string]interface{}{
		"ranking": []map[string]string{
			{"title": "Ronin", "justification": "Tight ensemble action close to Heat."},
			{"title": "Collateral", "justification": "Blends the crime and drama sides of the history."},
			{"title": "Magnolia", "justification": "Matches the ensemble-drama cluster."},
		},
	}
	rankingJSON, err := json.Marshal(ranking)
	require.NoError(t, err)

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, string(rankingJSON))
	}))
	defer llm.Close()

	shortlist := make([]rerankrecommendations.RankedMovie, len(scoreOut.Recommendations))
	for i, rec := range scoreOut.Recommendations {
		shortlist[i] = rerankrecommendations.RankedMovie{
			ID:     rec.ID,
			Title:  rec.Title,
			Year:   rec.Year,
			Genres: rec.Genres,
			Score:  rec.Score,
		}
	}

	reranker := rerankrecommendations.NewHandler(
		&rerankrecommendations.Config{
			BaseURL:    llm.URL,
			Model:      "gpt-4o-mini",
			Timeout:    10 * time.Second,
			MaxRetries: 1,
		},
		log,
	)
	rerankOut, err := reranker.Execute(ctx, &rerankrecommendations.Input{
		UserID:          userID,
		Profile:         fetchOut.Profile,
		Recommendations: shortlist,
	})
	require.NoError(t, err)
	assert.True(t, rerankOut.RerankApplied)
	require.Len(t, rerankOut.Recommendations, 9, "titles the model omitted keep their original order at the tail")
	assert.Equal(t, "Ronin", rerankOut.Recommendations[0].Title)
	assert.Equal(t, "Collateral", rerankOut.Recommendations[1].Title)
	assert.Equal(t, "Magnolia", rerankOut.Recommendations[2].Title)
	for i, rec := range rerankOut.Recommendations {
		assert.Equal(t, i+1, rec.Position)
	}

	// --- 6. Deliver the digest ---------------------------------------------

	email := &capturingEmailSender{}
	digester := sendrecommendationdigest.NewHandler(
		&sendrecommendationdigest.Config{
			Timeout:      30 * time.Second,
			FromEmail:    "digest@recommender.example",
			EmailEnabled: true,
		},
		email,
		disabledSMSSender{},
		log,
	)

	digest := make([]sendrecommendationdigest.Recommendation, len(rerankOut.Recommendations))
	for i, rec := range rerankOut.Recommendations {
		digest[i] = sendrecommendationdigest.Recommendation{
			Title:         rec.Title,
			Year:          rec.Year,
			Score:         rec.Score,
			Justification: rec.Justification,
		}
	}
	digestOut, err := digester.Execute(ctx, &sendrecommendationdigest.Input{
		UserID:          userID,
		Email:           "viewer@example.com",
		Recommendations: digest,
	})
	require.NoError(t, err)
	assert.Equal(t, sendrecommendationdigest.StatusSent, digestOut.Status)
	assert.True(t, digestOut.EmailSent)
	assert.False(t, digestOut.SMSSent)
	assert.Equal(t, "viewer@example.com", email.to)
	assert.Contains(t, email.body, "Ronin")
}

// Package media resolves exercise names to demonstration GIFs via the
// ExerciseDB API. Lookups are purely cosmetic for the gym monitor; every
// failure degrades to an empty URL and the workout carries on.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// cacheTTL is how long a resolved GIF URL stays valid. ExerciseDB GIF URLs
// rotate, so entries must eventually refresh.
const cacheTTL = 12 * time.Hour

// ErrNotFound means ExerciseDB has no entry for the exercise.
var ErrNotFound = errors.New("exercise not found")

// nameMap translates workout template names to ExerciseDB search terms where
// they differ.
var nameMap = map[string]string{
	"bench press":       "barbell bench press",
	"incline press":     "barbell incline bench press",
	"overhead press":    "barbell standing military press",
	"squat":             "barbell full squat",
	"front squat":       "barbell front squat",
	"deadlift":          "barbell deadlift",
	"romanian deadlift": "barbell romanian deadlift",
	"hip thrust":        "barbell glute bridge",
	"barbell row":       "barbell bent over row",
	"lat pulldown":      "cable pulldown",
	"leg press":         "sled 45 leg press",
	"leg curl":          "lever lying leg curl",
	"leg extension":     "lever leg extension",
	"bicep curl":        "dumbbell biceps curl",
	"tricep pushdown":   "cable pushdown",
	"lateral raise":     "dumbbell lateral raise",
	"calf raise":        "lever standing calf raise",
	"pull-up":           "pull up",
	"chin-up":           "chin-up",
	"dip":               "chest dip",
}

// ExerciseInfo is the subset of an ExerciseDB record the monitor shows.
type ExerciseInfo struct {
	Name      string `json:"name"`
	GifURL    string `json:"gifUrl"`
	BodyPart  string `json:"bodyPart"`
	Target    string `json:"target"`
	Equipment string `json:"equipment"`
}

// Client calls the ExerciseDB RapidAPI endpoint with a cache in front.
type Client struct {
	apiKey     string
	host       string
	baseURL    string
	httpClient *http.Client
	cache      Cache
	log        *slog.Logger
}

// New creates an ExerciseDB client. cache may be nil for an in-process one.
func New(apiKey, host string, cache Cache, log *slog.Logger) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Client{
		apiKey:     apiKey,
		host:       host,
		baseURL:    "https://" + host,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      cache,
		log:        log,
	}
}

// GifURL resolves the demonstration GIF for an exercise, consulting the
// cache first. Cache errors are logged and treated as misses.
func (c *Client) GifURL(ctx context.Context, exerciseName string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(exerciseName))

	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("gif cache read failed", "exercise", key, "error", err)
	} else if ok {
		return cached, nil
	}

	info, err := c.Lookup(ctx, exerciseName)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, info.GifURL, cacheTTL); err != nil {
		c.log.Warn("gif cache write failed", "exercise", key, "error", err)
	}
	return info.GifURL, nil
}

// Lookup fetches the best ExerciseDB match for an exercise name.
func (c *Client) Lookup(ctx context.Context, exerciseName string) (*ExerciseInfo, error) {
	term := strings.ToLower(strings.TrimSpace(exerciseName))
	if mapped, ok := nameMap[term]; ok {
		term = mapped
	}

	u := fmt.Sprintf("%s/exercises/name/%s?limit=1", c.baseURL, url.PathEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("exercisedb: create request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exercisedb: %s: %w", term, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("exercisedb: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exercisedb: %s returned %d: %s", term, resp.StatusCode, body)
	}

	var matches []ExerciseInfo
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("exercisedb: decode response: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("exercisedb: %s: %w", exerciseName, ErrNotFound)
	}
	return &matches[0], nil
}

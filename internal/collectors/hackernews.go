package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opsintel/intelbot/internal/config"
)

const (
	hnTopStoriesURL = "https://hacker-news.firebaseio.com/v0/topstories.json"
	hnItemURLFmt    = "https://hacker-news.firebaseio.com/v0/item/%d.json"

	hnFetchBudget = 60 // how many top story ids to inspect at most
)

// HackerNews collects top stories from the Firebase API.
type HackerNews struct {
	cfg    config.HNConfig
	client *http.Client
}

// NewHackerNews creates a collector.
func NewHackerNews(cfg config.HNConfig) *HackerNews {
	return &HackerNews{
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

// Collect fetches top story ids, resolves each item, and keeps stories
// passing the score and keyword filters, up to the configured limit.
func (h *HackerNews) Collect(ctx context.Context) ([]Project, error) {
	if !h.cfg.Enabled {
		return nil, nil
	}

	var ids []int
	if err := h.getJSON(ctx, hnTopStoriesURL, &ids); err != nil {
		return nil, fmt.Errorf("hn top stories: %w", err)
	}
	if len(ids) > hnFetchBudget {
		ids = ids[:hnFetchBudget]
	}

	limit := h.cfg.Limit
	if limit <= 0 {
		limit = 10
	}

	var stories []Project
	for _, id := range ids {
		if len(stories) >= limit {
			break
		}

		var item struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Score int    `json:"score"`
			Type  string `json:"type"`
		}
		if err := h.getJSON(ctx, fmt.Sprintf(hnItemURLFmt, id), &item); err != nil {
			slog.Debug("hn item fetch failed", "id", id, "error", err)
			continue
		}
		if item.Type != "story" || item.Score < h.cfg.MinScore {
			continue
		}
		if !h.matchesKeywords(item.Title) {
			continue
		}

		u := item.URL
		if u == "" {
			u = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id)
		}
		stories = append(stories, Project{
			Source: SourceHackerNews,
			Name:   item.Title,
			URL:    u,
			Score:  item.Score,
		})
	}
	return stories, nil
}

func (h *HackerNews) matchesKeywords(title string) bool {
	if len(h.cfg.Keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(title)
	for _, kw := range h.cfg.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (h *HackerNews) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/opsintel/intelbot/internal/config"
)

const (
	trendingBaseURL = "https://github.com/trending"
	reposAPIURL     = "https://api.github.com/repos"
	searchAPIURL    = "https://api.github.com/search/repositories"
	rawBaseURL      = "https://raw.githubusercontent.com"

	readmeMaxChars = 3000
)

// HistoryStore filters out projects that were already reported.
type HistoryStore interface {
	Seen(name string) (bool, error)
	MarkSeen(names []string) error
}

// GitHub collects trending repositories and resolves single projects
// for the /deep command. All API traffic shares one rate limiter so
// enrichment loops stay under GitHub's unauthenticated quota.
type GitHub struct {
	cfg     config.GitHubConfig
	client  *http.Client
	limiter *rate.Limiter
	history HistoryStore
	now     func() time.Time
}

// NewGitHub creates a collector. history may be nil, disabling the
// already-seen filter.
func NewGitHub(cfg config.GitHubConfig, history HistoryStore) *GitHub {
	return &GitHub{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		history: history,
		now:     time.Now,
	}
}

// Collect fetches the trending page(s), applies the configured filters,
// ranks by growth rate, and enriches the survivors with READMEs.
func (g *GitHub) Collect(ctx context.Context) ([]Project, error) {
	if !g.cfg.Enabled {
		return nil, nil
	}

	languages := g.cfg.Languages
	if len(languages) == 0 {
		languages = []string{""}
	}

	var all []Project
	for _, lang := range languages {
		projects, err := g.fetchTrending(ctx, lang)
		if err != nil {
			slog.Warn("github trending fetch failed", "language", lang, "error", err)
			continue
		}
		all = append(all, projects...)
	}

	// Deduplicate across language pages.
	seen := make(map[string]bool)
	unique := all[:0]
	for _, p := range all {
		if !seen[p.Name] {
			seen[p.Name] = true
			unique = append(unique, p)
		}
	}

	unique = filterByKeywords(unique, g.cfg.Keywords, true)
	unique = filterByKeywords(unique, g.cfg.ExcludedKeywords, false)

	g.enrichCreationDates(ctx, unique)
	if g.cfg.MaxAgeDays > 0 {
		unique = g.filterByAge(unique)
	}

	for i := range unique {
		if unique[i].Stars > 0 {
			unique[i].GrowthRate = float64(unique[i].StarsToday) / float64(unique[i].Stars) * 100
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].GrowthRate > unique[j].GrowthRate })

	unique = g.filterByHistory(unique)

	limit := g.cfg.Limit
	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}

	for i := range unique {
		g.fetchReadme(ctx, &unique[i])
	}

	if g.history != nil && len(unique) > 0 {
		names := make([]string, len(unique))
		for i, p := range unique {
			names[i] = p.Name
		}
		if err := g.history.MarkSeen(names); err != nil {
			slog.Warn("github history update failed", "error", err)
		}
	}

	return unique, nil
}

// FetchProject retrieves a single repository by "owner/name" via the
// API, including its README. Returns (nil, nil) when the repo does not
// exist.
func (g *GitHub) FetchProject(ctx context.Context, repoName string) (*Project, error) {
	body, status, err := g.get(ctx, reposAPIURL+"/"+repoName)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("github repo lookup: HTTP %d", status)
	}

	var data struct {
		FullName    string `json:"full_name"`
		HTMLURL     string `json:"html_url"`
		Description string `json:"description"`
		Language    string `json:"language"`
		Stars       int    `json:"stargazers_count"`
		Forks       int    `json:"forks_count"`
		CreatedAt   string `json:"created_at"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("github repo decode: %w", err)
	}

	p := &Project{
		Source:      SourceGitHub,
		Name:        data.FullName,
		URL:         data.HTMLURL,
		Description: data.Description,
		Language:    data.Language,
		Stars:       data.Stars,
		Forks:       data.Forks,
	}
	if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	g.fetchReadme(ctx, p)
	return p, nil
}

// SearchRepository finds the best-starred match for a free-form query
// and resolves it via FetchProject. Returns (nil, nil) on no match.
func (g *GitHub) SearchRepository(ctx context.Context, query string) (*Project, error) {
	u := fmt.Sprintf("%s?q=%s&sort=stars&order=desc&per_page=1", searchAPIURL, url.QueryEscape(query))
	body, status, err := g.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("github search: HTTP %d", status)
	}

	var data struct {
		Items []struct {
			FullName string `json:"full_name"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("github search decode: %w", err)
	}
	if len(data.Items) == 0 {
		return nil, nil
	}
	return g.FetchProject(ctx, data.Items[0].FullName)
}

// --- Trending page ---

func (g *GitHub) fetchTrending(ctx context.Context, language string) ([]Project, error) {
	u := trendingBaseURL
	if language != "" {
		u += "/" + url.PathEscape(language)
	}
	since := g.cfg.Since
	if since == "" {
		since = "daily"
	}
	u += "?since=" + url.QueryEscape(since)

	body, status, err := g.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("trending page: HTTP %d", status)
	}
	return parseTrendingPage(body)
}

// parseTrendingPage extracts projects from the trending page HTML.
// Each <article class="Box-row"> is one repository entry.
func parseTrendingPage(page []byte) ([]Project, error) {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return nil, fmt.Errorf("parse trending html: %w", err)
	}

	var projects []Project
	for _, article := range findAll(doc, func(n *html.Node) bool {
		return n.Data == "article" && hasClass(n, "Box-row")
	}) {
		if p, ok := parseTrendingArticle(article); ok {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

func parseTrendingArticle(article *html.Node) (Project, bool) {
	p := Project{Source: SourceGitHub}

	// Repo name from the h2 link's href ("/owner/repo").
	h2 := findFirst(article, func(n *html.Node) bool { return n.Data == "h2" })
	if h2 == nil {
		return p, false
	}
	link := findFirst(h2, func(n *html.Node) bool { return n.Data == "a" })
	if link == nil {
		return p, false
	}
	p.Name = strings.Trim(attr(link, "href"), "/")
	if p.Name == "" {
		return p, false
	}
	p.URL = "https://github.com/" + p.Name

	if desc := findFirst(article, func(n *html.Node) bool { return n.Data == "p" }); desc != nil {
		p.Description = strings.TrimSpace(text(desc))
	}
	if lang := findFirst(article, func(n *html.Node) bool {
		return attr(n, "itemprop") == "programmingLanguage"
	}); lang != nil {
		p.Language = strings.TrimSpace(text(lang))
	}
	if stars := findFirst(article, func(n *html.Node) bool {
		return n.Data == "a" && strings.HasSuffix(attr(n, "href"), "/stargazers")
	}); stars != nil {
		p.Stars = parseCount(text(stars))
	}
	if forks := findFirst(article, func(n *html.Node) bool {
		return n.Data == "a" && strings.HasSuffix(attr(n, "href"), "/forks")
	}); forks != nil {
		p.Forks = parseCount(text(forks))
	}
	// "123 stars today" span.
	if today := findFirst(article, func(n *html.Node) bool {
		return n.Data == "span" && strings.Contains(text(n), "stars today")
	}); today != nil {
		fields := strings.Fields(text(today))
		if len(fields) > 0 {
			p.StarsToday = parseCount(fields[0])
		}
	}

	return p, true
}

// parseCount parses "1,234", "1.2k" or "3m" into an int.
func parseCount(s string) int {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if s == "" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f * mult)
}

// --- Enrichment and filters ---

func (g *GitHub) enrichCreationDates(ctx context.Context, projects []Project) {
	for i := range projects {
		body, status, err := g.get(ctx, reposAPIURL+"/"+projects[i].Name)
		if err != nil || status != http.StatusOK {
			continue
		}
		var data struct {
			CreatedAt string `json:"created_at"`
		}
		if json.Unmarshal(body, &data) == nil {
			if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
				projects[i].CreatedAt = t
			}
		}
	}
}

func (g *GitHub) filterByAge(projects []Project) []Project {
	cutoff := g.now().AddDate(0, 0, -g.cfg.MaxAgeDays)
	out := projects[:0]
	for _, p := range projects {
		// Keep projects whose creation date is unknown.
		if p.CreatedAt.IsZero() || p.CreatedAt.After(cutoff) {
			out = append(out, p)
		} else {
			slog.Debug("github: skipped old project", "name", p.Name, "created", p.CreatedAt)
		}
	}
	return out
}

func (g *GitHub) filterByHistory(projects []Project) []Project {
	if g.history == nil {
		return projects
	}
	out := projects[:0]
	for _, p := range projects {
		seen, err := g.history.Seen(p.Name)
		if err != nil {
			slog.Warn("github history lookup failed", "name", p.Name, "error", err)
			out = append(out, p)
			continue
		}
		if !seen {
			out = append(out, p)
		}
	}
	return out
}

// filterByKeywords keeps projects matching any keyword (include=true)
// or drops projects matching any keyword (include=false). An empty
// keyword list passes everything through.
func filterByKeywords(projects []Project, keywords []string, include bool) []Project {
	if len(keywords) == 0 {
		return projects
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	out := projects[:0]
	for _, p := range projects {
		haystack := strings.ToLower(p.Name + " " + p.Description)
		matched := false
		for _, kw := range lowered {
			if strings.Contains(haystack, kw) {
				matched = true
				break
			}
		}
		if matched == include {
			out = append(out, p)
		}
	}
	return out
}

func (g *GitHub) fetchReadme(ctx context.Context, p *Project) {
	for _, branch := range []string{"main", "master"} {
		u := fmt.Sprintf("%s/%s/%s/README.md", rawBaseURL, p.Name, branch)
		body, status, err := g.get(ctx, u)
		if err != nil {
			return
		}
		if status == http.StatusOK {
			readme := string(body)
			if len(readme) > readmeMaxChars {
				readme = readme[:readmeMaxChars]
			}
			p.Readme = readme
			return
		}
	}
}

// --- HTTP plumbing ---

func (g *GitHub) get(ctx context.Context, u string) ([]byte, int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "intelbot/1.0")
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("github get %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// --- HTML helpers ---

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

package notifiers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opsintel/intelbot/internal/analyzer"
	"github.com/opsintel/intelbot/internal/config"
)

// DingTalkNotifier sends markdown reports to a DingTalk group robot
// webhook, signing requests when a secret is configured.
type DingTalkNotifier struct {
	cfg  config.DingTalkConfig
	http *http.Client
	now  func() time.Time
}

var _ Notifier = (*DingTalkNotifier)(nil)

// NewDingTalk builds a DingTalk notifier.
func NewDingTalk(cfg config.DingTalkConfig) *DingTalkNotifier {
	return &DingTalkNotifier{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
	}
}

func (n *DingTalkNotifier) Name() string { return "dingtalk" }

// Send delivers the report as a markdown message.
func (n *DingTalkNotifier) Send(ctx context.Context, analyses []analyzer.Analysis) error {
	if len(analyses) == 0 {
		return nil
	}
	return n.post(ctx, reportTitle, buildMarkdown(analyses))
}

// SendTest delivers a short probe message.
func (n *DingTalkNotifier) SendTest(ctx context.Context) error {
	return n.post(ctx, "Test", "DingTalk notifier is configured correctly.")
}

func (n *DingTalkNotifier) post(ctx context.Context, title, text string) error {
	if n.cfg.WebhookURL == "" {
		return fmt.Errorf("dingtalk notifier: no webhook url configured")
	}
	payload, err := json.Marshal(map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", n.signedURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode webhook response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("dingtalk webhook: errcode=%d errmsg=%s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

// signedURL appends the timestamp and HMAC-SHA256 signature required by
// security-enabled robots. Without a secret the raw URL is used.
func (n *DingTalkNotifier) signedURL() string {
	if n.cfg.Secret == "" {
		return n.cfg.WebhookURL
	}
	timestamp := strconv.FormatInt(n.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(n.cfg.Secret))
	mac.Write([]byte(timestamp + "\n" + n.cfg.Secret))
	sign := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return fmt.Sprintf("%s&timestamp=%s&sign=%s", n.cfg.WebhookURL, timestamp, sign)
}

// --- Markdown building ---

func buildMarkdown(analyses []analyzer.Analysis) string {
	github, hn := splitBySource(analyses)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", reportTitle)

	writeSection := func(heading string, items []analyzer.Analysis) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		for i, a := range items {
			fmt.Fprintf(&b, "### %d. [%s](%s)\n\n", i+1, a.Title, a.URL)
			if a.Summary != "" {
				fmt.Fprintf(&b, "> %s\n\n", a.Summary)
			}
			for j, h := range a.Highlights {
				if j >= maxHighlights {
					break
				}
				fmt.Fprintf(&b, "- %s\n", h)
			}
			if len(a.TechStack) > 0 {
				tags := a.TechStack
				if len(tags) > maxTechStackTags {
					tags = tags[:maxTechStackTags]
				}
				fmt.Fprintf(&b, "\n**Stack**: %s\n", strings.Join(tags, ", "))
			}
			b.WriteString("\n")
		}
	}
	writeSection("🔥 GitHub Trending", github)
	writeSection("📰 Hacker News", hn)

	b.WriteString("---\n*Pushed by intelbot*")
	return b.String()
}

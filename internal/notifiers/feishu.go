package notifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opsintel/intelbot/internal/analyzer"
	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/lark"
)

// FeishuNotifier sends interactive cards to Feishu. It prefers the bot
// API when app credentials and a default chat are configured, and falls
// back to the group custom-bot webhook.
type FeishuNotifier struct {
	cfg    config.LarkConfig
	client *lark.Client // nil when no app credentials
	http   *http.Client
}

var _ Notifier = (*FeishuNotifier)(nil)

// NewFeishu builds a Feishu notifier. client may be nil.
func NewFeishu(cfg config.LarkConfig, client *lark.Client) *FeishuNotifier {
	return &FeishuNotifier{
		cfg:    cfg,
		client: client,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *FeishuNotifier) Name() string { return "feishu" }

// Send delivers the report card.
func (n *FeishuNotifier) Send(ctx context.Context, analyses []analyzer.Analysis) error {
	if len(analyses) == 0 {
		return nil
	}
	return n.sendCard(ctx, buildCard(analyses))
}

// SendTest delivers a short probe card.
func (n *FeishuNotifier) SendTest(ctx context.Context) error {
	card := map[string]any{
		"header": cardHeader("🧪 Test Notification"),
		"elements": []map[string]any{
			{"tag": "markdown", "content": "Feishu notifier is configured correctly."},
		},
	}
	return n.sendCard(ctx, card)
}

func (n *FeishuNotifier) sendCard(ctx context.Context, card map[string]any) error {
	if n.client != nil && n.cfg.DefaultChatID != "" {
		content, err := json.Marshal(card)
		if err != nil {
			return fmt.Errorf("marshal card: %w", err)
		}
		chatID := n.cfg.DefaultChatID
		_, err = n.client.SendMessage(ctx, lark.ReceiveIDType(chatID), chatID, "interactive", string(content))
		return err
	}
	if n.cfg.WebhookURL != "" {
		return n.sendWebhook(ctx, card)
	}
	return fmt.Errorf("feishu notifier: no chat id or webhook url configured")
}

func (n *FeishuNotifier) sendWebhook(ctx context.Context, card map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"msg_type": "interactive",
		"card":     card,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", n.cfg.WebhookURL, bytes.NewReader(payload))
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
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode webhook response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("feishu webhook: code=%d msg=%s", result.Code, result.Msg)
	}
	return nil
}

// --- Card building ---

func cardHeader(title string) map[string]any {
	return map[string]any{
		"title":    map[string]any{"tag": "plain_text", "content": title},
		"template": "blue",
	}
}

func buildCard(analyses []analyzer.Analysis) map[string]any {
	github, hn := splitBySource(analyses)
	var elements []map[string]any

	addSection := func(heading string, items []analyzer.Analysis) {
		if len(items) == 0 {
			return
		}
		elements = append(elements,
			map[string]any{"tag": "markdown", "content": heading},
			map[string]any{"tag": "hr"},
		)
		for _, a := range items {
			elements = append(elements,
				map[string]any{"tag": "markdown", "content": formatCardEntry(a)},
				map[string]any{"tag": "hr"},
			)
		}
	}
	addSection("**🔥 GitHub Trending**", github)
	addSection("**📰 Hacker News**", hn)

	elements = append(elements, map[string]any{
		"tag": "note",
		"elements": []map[string]any{
			{"tag": "plain_text", "content": "Pushed by intelbot · " + time.Now().Format("2006-01-02")},
		},
	})
	return map[string]any{
		"header":   cardHeader(reportTitle),
		"elements": elements,
	}
}

func formatCardEntry(a analyzer.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**[%s](%s)**\n", a.Title, a.URL)
	if a.Summary != "" {
		fmt.Fprintf(&b, "%s\n", a.Summary)
	}
	for i, h := range a.Highlights {
		if i >= maxHighlights {
			break
		}
		fmt.Fprintf(&b, "- %s\n", h)
	}
	if len(a.TechStack) > 0 {
		tags := a.TechStack
		if len(tags) > maxTechStackTags {
			tags = tags[:maxTechStackTags]
		}
		fmt.Fprintf(&b, "**Stack**: %s\n", strings.Join(tags, ", "))
	}
	return b.String()
}

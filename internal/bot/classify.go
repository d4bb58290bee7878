package bot

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opsintel/intelbot/internal/bus"
	"github.com/opsintel/intelbot/internal/lark"
)

// Verdict is the classifier's decision for one event.
type Verdict int

const (
	// VerdictDrop ends processing with no reply.
	VerdictDrop Verdict = iota
	// VerdictGreet short-circuits to a canned greeting reply.
	VerdictGreet
	// VerdictProceed hands the normalized event to routing.
	VerdictProceed
)

// Classified is the normalized output handed to the router. For
// KindImage, Text carries the caption and ImageKey the resource key.
type Classified struct {
	Kind      bus.EventKind
	Text      string
	ImageKey  string
	MessageID string
	ChatID    string
	SenderID  string
	ChatType  bus.ChatType
}

// Classifier applies the gate pipeline to inbound events. Gates run in
// a fixed order and the first match ends processing.
type Classifier struct {
	selfID     string
	staleAfter time.Duration
	now        func() time.Time
}

// NewClassifier builds a classifier gating against the bot's own
// open_id.
func NewClassifier(selfID string, staleAfter time.Duration) *Classifier {
	if staleAfter <= 0 {
		staleAfter = 60 * time.Second
	}
	return &Classifier{selfID: selfID, staleAfter: staleAfter, now: time.Now}
}

// Classify runs the gates. The string names the gate that dropped the
// event, for logging; it is empty unless the verdict is VerdictDrop.
func (c *Classifier) Classify(ev bus.InboundEvent) (Classified, Verdict, string) {
	// 1. Staleness — redelivered or backlogged events are not worth a
	// late reply.
	if ev.CreateTime.IsZero() || c.now().Sub(ev.CreateTime) > c.staleAfter {
		return Classified{}, VerdictDrop, "stale"
	}

	// 2. Self-echo.
	if ev.SenderID == c.selfID {
		return Classified{}, VerdictDrop, "self_echo"
	}

	out := Classified{
		Kind:      ev.Kind,
		Text:      ev.Text,
		ImageKey:  ev.ImageKey,
		MessageID: ev.MessageID,
		ChatID:    ev.ChatID,
		SenderID:  ev.SenderID,
		ChatType:  ev.ChatType,
	}

	// 3. Kind normalization — rich posts collapse to image-with-caption
	// or plain text.
	if ev.Kind == bus.KindRichPost {
		text, imageKey, err := flattenPost(ev.Text)
		if err != nil {
			return Classified{}, VerdictDrop, "malformed_post"
		}
		out.Text = text
		if imageKey != "" {
			out.Kind = bus.KindImage
			out.ImageKey = imageKey
		} else {
			out.Kind = bus.KindText
		}
	}

	// 4. Mention gating, group chats only.
	if ev.ChatType == bus.ChatGroup {
		if len(ev.Mentions) == 0 {
			return Classified{}, VerdictDrop, "no_mention"
		}
		var hit *bus.Mention
		for i := range ev.Mentions {
			if ev.Mentions[i].TargetID == c.selfID {
				hit = &ev.Mentions[i]
				break
			}
		}
		if hit == nil {
			return Classified{}, VerdictDrop, "mention_not_bot"
		}
		out.Text = strings.TrimSpace(strings.ReplaceAll(out.Text, hit.Key, ""))
	} else {
		out.Text = strings.TrimSpace(out.Text)
	}

	// 5. Empty-content guard.
	if out.Kind == bus.KindText && utf8.RuneCountInString(out.Text) < 2 {
		return out, VerdictGreet, ""
	}

	return out, VerdictProceed, ""
}

// flattenPost extracts the first embedded image key and the
// concatenation of all non-image text from a raw post payload.
func flattenPost(raw string) (text, imageKey string, err error) {
	post, err := lark.DecodePost(raw)
	if err != nil {
		return "", "", err
	}
	var parts []string
	for _, body := range post {
		if body.Title != "" {
			parts = append(parts, body.Title)
		}
		for _, paragraph := range body.Content {
			for _, el := range paragraph {
				switch el.Tag {
				case "img":
					if imageKey == "" {
						imageKey = el.ImageKey
					}
				case "text", "md", "a":
					if el.Text != "" {
						parts = append(parts, el.Text)
					}
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), imageKey, nil
}

// Package lark is a native Feishu/Lark API client: REST messaging with
// tenant token management plus a WebSocket event subscription. No
// platform SDK — only the handful of endpoints the bot needs.
package lark

import "encoding/json"

// MessageEvent is the im.message.receive_v1 event envelope.
type MessageEvent struct {
	Schema string      `json:"schema"`
	Header EventHeader `json:"header"`
	Event  struct {
		Sender  EventSender  `json:"sender"`
		Message EventMessage `json:"message"`
	} `json:"event"`
}

// EventHeader identifies the event type and instance.
type EventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"` // unix ms, decimal string
	TenantKey  string `json:"tenant_key"`
}

// EventSender identifies who sent the message.
type EventSender struct {
	SenderID struct {
		OpenID  string `json:"open_id"`
		UserID  string `json:"user_id"`
		UnionID string `json:"union_id"`
	} `json:"sender_id"`
	SenderType string `json:"sender_type"`
}

// EventMessage is the message body inside a receive event. Content is a
// JSON string whose shape depends on MessageType.
type EventMessage struct {
	MessageID   string         `json:"message_id"`
	RootID      string         `json:"root_id"`
	ParentID    string         `json:"parent_id"`
	CreateTime  string         `json:"create_time"` // unix ms, decimal string
	ChatID      string         `json:"chat_id"`
	ChatType    string         `json:"chat_type"` // "p2p" or "group"
	MessageType string         `json:"message_type"`
	Content     string         `json:"content"`
	Mentions    []EventMention `json:"mentions"`
}

// EventMention is one structured @-marker in the message.
type EventMention struct {
	Key string `json:"key"`
	ID  struct {
		OpenID string `json:"open_id"`
	} `json:"id"`
	Name string `json:"name"`
}

// --- Content payload shapes ---

// TextContent is the content of a "text" message.
type TextContent struct {
	Text string `json:"text"`
}

// ImageContent is the content of an "image" message.
type ImageContent struct {
	ImageKey string `json:"image_key"`
}

// PostContent is the content of a "post" (rich text) message: one block
// of paragraphs per language, each paragraph a list of tagged elements.
type PostContent map[string]PostBody

// PostBody is a single-language rich post.
type PostBody struct {
	Title   string          `json:"title"`
	Content [][]PostElement `json:"content"`
}

// PostElement is one tagged inline element of a rich post paragraph.
// Only the fields for the tags the classifier cares about are mapped.
type PostElement struct {
	Tag      string `json:"tag"` // "text", "md", "a", "at", "img"
	Text     string `json:"text"`
	Href     string `json:"href"`
	UserName string `json:"user_name"`
	ImageKey string `json:"image_key"`
}

// DecodePost parses a raw post content JSON string.
func DecodePost(raw string) (PostContent, error) {
	var post PostContent
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		return nil, err
	}
	return post, nil
}

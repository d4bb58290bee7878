package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// --- IM API: Messages ---

// SendMessageResp is the result of a message create call.
type SendMessageResp struct {
	MessageID string `json:"message_id"`
}

// SendMessage posts a message to a chat. msgType is "text", "post" or
// "interactive"; content is the serialized message payload.
func (c *Client) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (*SendMessageResp, error) {
	path := "/open-apis/im/v1/messages?receive_id_type=" + receiveIDType
	body := map[string]string{
		"receive_id": receiveID,
		"msg_type":   msgType,
		"content":    content,
	}
	resp, err := c.doJSON(ctx, "POST", path, body)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("send message: code=%d msg=%s", resp.Code, resp.Msg)
	}
	var data SendMessageResp
	json.Unmarshal(resp.Data, &data)
	return &data, nil
}

// SendText posts a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content, _ := json.Marshal(map[string]string{"text": text})
	_, err := c.SendMessage(ctx, ReceiveIDType(chatID), chatID, "text", string(content))
	return err
}

// ReceiveIDType infers the receive_id_type from the target id prefix.
func ReceiveIDType(id string) string {
	switch {
	case strings.HasPrefix(id, "ou_"):
		return "open_id"
	case strings.HasPrefix(id, "on_"):
		return "union_id"
	default:
		return "chat_id"
	}
}

// --- IM API: Message resources ---

// DownloadMessageResource fetches the raw bytes of a file or image
// attached to a message.
func (c *Client) DownloadMessageResource(ctx context.Context, messageID, fileKey, resourceType string) ([]byte, error) {
	path := fmt.Sprintf("/open-apis/im/v1/messages/%s/resources/%s?type=%s", messageID, fileKey, resourceType)
	return c.doDownload(ctx, path)
}

// --- Bot API ---

// BotInfo is the bot's own identity, resolved once at startup.
type BotInfo struct {
	OpenID      string
	DisplayName string
}

// GetBotInfo fetches the bot identity from /open-apis/bot/v3/info. The
// open_id is required for mention detection and self-echo suppression.
func (c *Client) GetBotInfo(ctx context.Context) (*BotInfo, error) {
	resp, err := c.doJSON(ctx, "GET", "/open-apis/bot/v3/info", nil)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("get bot info: code=%d msg=%s", resp.Code, resp.Msg)
	}
	var result struct {
		Bot struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	json.Unmarshal(resp.Data, &result)
	if result.Bot.OpenID == "" {
		return nil, fmt.Errorf("get bot info: empty open_id in response")
	}
	return &BotInfo{OpenID: result.Bot.OpenID, DisplayName: result.Bot.AppName}, nil
}

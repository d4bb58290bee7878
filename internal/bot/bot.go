// Package bot is the message-intake core: the ingress gate, the worker
// pool, the classifier gates, the command router, and the conversation
// path that turns inbound Lark events into replies.
package bot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsintel/intelbot/internal/bus"
	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/lark"
	"github.com/opsintel/intelbot/internal/memory"
	"github.com/opsintel/intelbot/internal/providers"
	"github.com/opsintel/intelbot/internal/tracing"
)

const chatSystemPrompt = `You are a helpful assistant focused on technology project analysis and information security. If you don't know something, say so. Answer concisely and professionally.`

// maxImageDim caps the longest side of images forwarded to the vision
// model.
const maxImageDim = 1024

// ReplySink delivers outbound replies. Satisfied by *lark.Client.
type ReplySink interface {
	SendText(ctx context.Context, chatID, text string) error
}

// ImageSource fetches message attachments. Satisfied by *lark.Client.
type ImageSource interface {
	DownloadMessageResource(ctx context.Context, messageID, fileKey, resourceType string) ([]byte, error)
}

// Bot wires the intake pipeline together. Construct with New, resolve
// identity with Start, then feed it events; it implements
// lark.EventHandler.
type Bot struct {
	cfg        config.BotConfig
	analyzer   config.AnalyzerConfig
	sink       ReplySink
	images     ImageSource
	identity   *lark.BotInfo
	provider   providers.Provider
	memory     *memory.Store
	classifier *Classifier
	router     *Router
	dispatcher *Dispatcher
	log        *slog.Logger
	tracer     trace.Tracer
}

var _ lark.EventHandler = (*Bot)(nil)

// New builds a Bot. identity stays unresolved until Start.
func New(cfg *config.Config, sink ReplySink, images ImageSource, provider providers.Provider, lookup ProjectLookup, log *slog.Logger) *Bot {
	b := &Bot{
		cfg:      cfg.Bot,
		analyzer: cfg.Analyzer,
		sink:     sink,
		images:   images,
		provider: provider,
		memory:   memory.NewStore(cfg.Bot.MaxHistory, cfg.Bot.HistoryTTL()),
		router:   NewRouter(lookup),
		log:      log,
		tracer:   tracing.Tracer(),
	}
	b.dispatcher = NewDispatcher(cfg.Bot.Workers, cfg.Bot.QueueSize, cfg.Bot.DedupeCapacity, log, b.process)
	return b
}

// Start resolves the bot identity and launches the worker pool. It
// fails before any event is accepted when identity resolution fails.
func (b *Bot) Start(ctx context.Context, resolve func(context.Context) (*lark.BotInfo, error)) error {
	info, err := resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot identity: %w", err)
	}
	b.identity = info
	b.classifier = NewClassifier(info.OpenID, b.cfg.StaleAfter())
	b.dispatcher.Start(ctx)
	b.log.Info("bot started", "open_id", info.OpenID, "name", info.DisplayName)
	return nil
}

// Stop drains the worker pool.
func (b *Bot) Stop() {
	b.dispatcher.Stop()
}

// --- Ingress ---

// HandleEvent receives a raw websocket event frame. Only message
// receive events are ingested; everything else is ignored.
func (b *Bot) HandleEvent(ctx context.Context, payload []byte) error {
	var event lark.MessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if event.Header.EventType != "im.message.receive_v1" {
		return nil
	}
	ev, ok := toInboundEvent(&event)
	if !ok {
		b.log.Debug("event ignored", "message_type", event.Event.Message.MessageType)
		return nil
	}
	b.dispatcher.Offer(ev)
	return nil
}

// toInboundEvent converts the platform envelope into the single typed
// variant the pipeline operates on. Rich posts keep their raw content;
// the classifier flattens them.
func toInboundEvent(event *lark.MessageEvent) (bus.InboundEvent, bool) {
	msg := &event.Event.Message

	ev := bus.InboundEvent{
		MessageID:  msg.MessageID,
		ChatID:     msg.ChatID,
		SenderID:   event.Event.Sender.SenderID.OpenID,
		CreateTime: parseUnixMilli(msg.CreateTime),
	}
	if msg.ChatType == "group" {
		ev.ChatType = bus.ChatGroup
	} else {
		ev.ChatType = bus.ChatDirect
	}
	for _, m := range msg.Mentions {
		ev.Mentions = append(ev.Mentions, bus.Mention{
			Key:      m.Key,
			TargetID: m.ID.OpenID,
			Name:     m.Name,
		})
	}

	switch msg.MessageType {
	case "text":
		var content lark.TextContent
		if err := json.Unmarshal([]byte(msg.Content), &content); err != nil {
			return bus.InboundEvent{}, false
		}
		ev.Kind = bus.KindText
		ev.Text = content.Text
	case "image":
		var content lark.ImageContent
		if err := json.Unmarshal([]byte(msg.Content), &content); err != nil {
			return bus.InboundEvent{}, false
		}
		ev.Kind = bus.KindImage
		ev.ImageKey = content.ImageKey
	case "post":
		ev.Kind = bus.KindRichPost
		ev.Text = msg.Content
	default:
		return bus.InboundEvent{}, false
	}
	return ev, true
}

func parseUnixMilli(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// --- Worker path ---

// process runs one gated event to completion on a worker.
func (b *Bot) process(ctx context.Context, ev bus.InboundEvent) {
	runID := uuid.NewString()
	ctx, span := b.tracer.Start(ctx, "bot.process", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("chat_id", ev.ChatID),
		attribute.String("kind", string(ev.Kind)),
	))
	defer span.End()

	log := b.log.With("run_id", runID, "message_id", ev.MessageID, "chat_id", ev.ChatID)

	mc, verdict, gate := b.classifier.Classify(ev)
	switch verdict {
	case VerdictDrop:
		log.Debug("event dropped", "gate", gate)
		return
	case VerdictGreet:
		b.reply(ctx, log, mc.ChatID, greetingReply)
		return
	}

	send := func(text string) error {
		return b.reply(ctx, log, mc.ChatID, text)
	}

	if mc.Kind == bus.KindText && b.router.Route(ctx, mc.Text, send) {
		return
	}

	b.converse(ctx, log, mc)
}

// converse is the generation path: history in, LLM call, reply out,
// both turns recorded.
func (b *Bot) converse(ctx context.Context, log *slog.Logger, mc Classified) {
	userText := mc.Text
	if mc.Kind == bus.KindImage && userText == "" {
		userText = "Describe this image."
	}

	msg := providers.Message{Role: "user", Content: userText}
	if mc.Kind == bus.KindImage {
		image, err := b.prepareImage(ctx, mc)
		if err != nil {
			log.Warn("image retrieval failed", "image_key", mc.ImageKey, "error", err)
			b.reply(ctx, log, mc.ChatID, busyReply)
			return
		}
		msg.Images = []providers.ImageContent{image}
	}

	messages := []providers.Message{{Role: "system", Content: chatSystemPrompt}}
	for _, turn := range b.memory.GetHistory(mc.ChatID) {
		messages = append(messages, providers.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, msg)

	callCtx, cancel := context.WithTimeout(ctx, b.chatTimeout())
	defer cancel()
	resp, err := b.provider.Chat(callCtx, providers.ChatRequest{
		Messages:    messages,
		Model:       b.analyzer.Model,
		Temperature: b.analyzer.Temperature,
		MaxTokens:   b.analyzer.MaxTokens,
	})
	if err != nil {
		log.Warn("generation failed", "error", err)
		b.reply(ctx, log, mc.ChatID, busyReply)
		return
	}

	b.memory.AddTurn(mc.ChatID, memory.RoleUser, userText)
	b.memory.AddTurn(mc.ChatID, memory.RoleAssistant, resp.Content)

	b.reply(ctx, log, mc.ChatID, resp.Content)
}

func (b *Bot) chatTimeout() time.Duration {
	if b.analyzer.TimeoutSecs > 0 {
		return time.Duration(b.analyzer.TimeoutSecs) * time.Second
	}
	return 120 * time.Second
}

// reply delivers one outbound text. A delivery failure is terminal for
// the event and only logged.
func (b *Bot) reply(ctx context.Context, log *slog.Logger, chatID, text string) error {
	if err := b.sink.SendText(ctx, chatID, text); err != nil {
		log.Error("reply failed", "error", err)
		return err
	}
	return nil
}

// --- Image path ---

// prepareImage downloads an attachment and downscales it for the vision
// model.
func (b *Bot) prepareImage(ctx context.Context, mc Classified) (providers.ImageContent, error) {
	raw, err := b.images.DownloadMessageResource(ctx, mc.MessageID, mc.ImageKey, "image")
	if err != nil {
		return providers.ImageContent{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return providers.ImageContent{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxImageDim || bounds.Dy() > maxImageDim {
		img = imaging.Fit(img, maxImageDim, maxImageDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return providers.ImageContent{}, fmt.Errorf("encode image: %w", err)
	}
	return providers.ImageContent{
		MimeType: "image/jpeg",
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

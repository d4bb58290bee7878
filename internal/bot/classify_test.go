package bot

import (
	"testing"
	"time"

	"github.com/opsintel/intelbot/internal/bus"
)

const testBotID = "ou_bot"

func newTestClassifier() *Classifier {
	c := NewClassifier(testBotID, 60*time.Second)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

func freshEvent() bus.InboundEvent {
	return bus.InboundEvent{
		MessageID:  "om_1",
		ChatID:     "oc_1",
		ChatType:   bus.ChatDirect,
		SenderID:   "ou_user",
		CreateTime: time.Unix(1_700_000_000, 0).Add(-5 * time.Second),
		Kind:       bus.KindText,
		Text:       "hello there",
	}
}

func TestClassifyDropsStaleEvents(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.CreateTime = time.Unix(1_700_000_000, 0).Add(-61 * time.Second)

	_, verdict, gate := c.Classify(ev)
	if verdict != VerdictDrop || gate != "stale" {
		t.Errorf("verdict=%v gate=%q, want drop/stale", verdict, gate)
	}
}

func TestClassifyDropsSelfEcho(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.SenderID = testBotID
	// Even a mention of the bot does not rescue a self-echo.
	ev.ChatType = bus.ChatGroup
	ev.Mentions = []bus.Mention{{Key: "@_user_1", TargetID: testBotID}}

	_, verdict, gate := c.Classify(ev)
	if verdict != VerdictDrop || gate != "self_echo" {
		t.Errorf("verdict=%v gate=%q, want drop/self_echo", verdict, gate)
	}
}

func TestClassifyGroupWithoutMentionDropped(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.ChatType = bus.ChatGroup

	_, verdict, gate := c.Classify(ev)
	if verdict != VerdictDrop || gate != "no_mention" {
		t.Errorf("verdict=%v gate=%q, want drop/no_mention", verdict, gate)
	}
}

func TestClassifyGroupMentionOfSomeoneElseDropped(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.ChatType = bus.ChatGroup
	ev.Mentions = []bus.Mention{{Key: "@_user_1", TargetID: "ou_other"}}

	_, verdict, gate := c.Classify(ev)
	if verdict != VerdictDrop || gate != "mention_not_bot" {
		t.Errorf("verdict=%v gate=%q, want drop/mention_not_bot", verdict, gate)
	}
}

func TestClassifyStripsBotMention(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.ChatType = bus.ChatGroup
	ev.Text = "@_user_1 what is zig"
	ev.Mentions = []bus.Mention{{Key: "@_user_1", TargetID: testBotID, Name: "intelbot"}}

	mc, verdict, _ := c.Classify(ev)
	if verdict != VerdictProceed {
		t.Fatalf("verdict=%v, want proceed", verdict)
	}
	if mc.Text != "what is zig" {
		t.Errorf("text=%q, want mention stripped", mc.Text)
	}
}

func TestClassifyEmptyContentGuard(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.ChatType = bus.ChatGroup
	ev.Text = "@_user_1 h"
	ev.Mentions = []bus.Mention{{Key: "@_user_1", TargetID: testBotID}}

	_, verdict, _ := c.Classify(ev)
	if verdict != VerdictGreet {
		t.Errorf("verdict=%v, want greet for sub-2-rune text", verdict)
	}

	// Two runes clear the guard.
	ev.Text = "@_user_1 hi"
	_, verdict, _ = c.Classify(ev)
	if verdict != VerdictProceed {
		t.Errorf("verdict=%v, want proceed for 2-rune text", verdict)
	}
}

func TestClassifyRichPostWithImage(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.Kind = bus.KindRichPost
	ev.Text = `{"zh_cn":{"title":"Report","content":[[{"tag":"text","text":"see chart"},{"tag":"img","image_key":"img_k1"}]]}}`

	mc, verdict, _ := c.Classify(ev)
	if verdict != VerdictProceed {
		t.Fatalf("verdict=%v, want proceed", verdict)
	}
	if mc.Kind != bus.KindImage {
		t.Errorf("kind=%v, want image", mc.Kind)
	}
	if mc.ImageKey != "img_k1" {
		t.Errorf("image key=%q, want img_k1", mc.ImageKey)
	}
	if mc.Text != "Report see chart" {
		t.Errorf("caption=%q", mc.Text)
	}
}

func TestClassifyRichPostTextOnly(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.Kind = bus.KindRichPost
	ev.Text = `{"zh_cn":{"content":[[{"tag":"text","text":"plain words here"}]]}}`

	mc, verdict, _ := c.Classify(ev)
	if verdict != VerdictProceed {
		t.Fatalf("verdict=%v, want proceed", verdict)
	}
	if mc.Kind != bus.KindText || mc.Text != "plain words here" {
		t.Errorf("got kind=%v text=%q", mc.Kind, mc.Text)
	}
}

func TestClassifyMalformedPostDropped(t *testing.T) {
	c := newTestClassifier()
	ev := freshEvent()
	ev.Kind = bus.KindRichPost
	ev.Text = `{not json`

	_, verdict, gate := c.Classify(ev)
	if verdict != VerdictDrop || gate != "malformed_post" {
		t.Errorf("verdict=%v gate=%q, want drop/malformed_post", verdict, gate)
	}
}

package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type fakeSender struct {
	sent    []tgbotapi.MessageConfig
	failFor map[string]bool // ParseMode que deve falhar
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, msg)
	if f.failFor[msg.ParseMode] {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func newTestNotifier(api sender) *TelegramNotifier {
	n := NewTelegramNotifier(api)
	n.limiter = rate.NewLimiter(rate.Inf, 1)
	return n
}

func TestNotifierTargets(t *testing.T) {
	api := &fakeSender{}
	n := newTestNotifier(api)
	ctx := context.Background()

	for _, ch := range []string{"-1001234", "@precos", "precos"} {
		if err := n.Send(ctx, ch, "<b>oi</b>"); err != nil {
			t.Fatalf("Send(%q): %v", ch, err)
		}
	}

	if api.sent[0].ChatID != -1001234 || api.sent[0].ChannelUsername != "" {
		t.Errorf("numeric id: %+v", api.sent[0].BaseChat)
	}
	if api.sent[1].ChannelUsername != "@precos" || api.sent[2].ChannelUsername != "@precos" {
		t.Errorf("channel names: %q %q", api.sent[1].ChannelUsername, api.sent[2].ChannelUsername)
	}
	for _, m := range api.sent {
		if m.ParseMode != tgbotapi.ModeHTML {
			t.Errorf("ParseMode = %q", m.ParseMode)
		}
	}
}

func TestNotifierPlainRetry(t *testing.T) {
	api := &fakeSender{failFor: map[string]bool{tgbotapi.ModeHTML: true}}
	n := newTestNotifier(api)

	if err := n.Send(context.Background(), "@precos", "<b>oi"); err != nil {
		t.Fatalf("plain retry should succeed: %v", err)
	}
	if len(api.sent) != 2 || api.sent[1].ParseMode != "" {
		t.Errorf("sent = %+v", api.sent)
	}

	api.failFor[""] = true
	if err := n.Send(context.Background(), "@precos", "x"); err == nil {
		t.Error("expected error when both attempts fail")
	}
}

func TestNotifierEmptyChannel(t *testing.T) {
	api := &fakeSender{}
	if err := newTestNotifier(api).Send(context.Background(), "  ", "x"); err == nil {
		t.Error("expected error")
	}
	if len(api.sent) != 0 {
		t.Error("nothing must be sent")
	}
}

func TestNotifierRateLimit(t *testing.T) {
	api := &fakeSender{}
	n := NewTelegramNotifier(api)

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Send(ctx, "@precos", "1"); err != nil {
		t.Fatal(err)
	}
	// o segundo envio teria de esperar NotifyInterval
	cancel()
	if err := n.Send(ctx, "@precos", "2"); err == nil {
		t.Error("expected the limiter to refuse a cancelled wait")
	}
	if len(api.sent) != 1 {
		t.Errorf("sent %d messages", len(api.sent))
	}
}

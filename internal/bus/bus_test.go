package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"agribot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "cli", From: "cli:local", Body: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.Body != "hello" {
			t.Errorf("expected hello, got %q", msg.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSendOutbound_Dispatch(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	got := make(chan string, 1)
	b.OnOutbound("whatsapp", func(msg domain.OutboundMessage) { got <- msg.Content })

	b.SendOutbound(domain.OutboundMessage{Channel: "whatsapp", ChatID: "1", Content: "reply"})

	select {
	case content := <-got:
		if content != "reply" {
			t.Errorf("expected reply, got %q", content)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler not invoked")
	}
}

func TestSendOutbound_NoHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()
	// Must not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", Content: "x"})
}

func TestPublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	// Must not panic on a closed bus.
	b.Publish(domain.InboundMessage{Channel: "cli"})
}

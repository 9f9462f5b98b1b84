package sse

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/novatask/novatask/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d, want 1", n)
	}

	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d, want 0", n)
	}

	// Channel must be closed after unsubscribe.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "summary", Data: "3 tasks due today"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: summary") {
			t.Errorf("message missing event type: %q", s)
		}
		if !strings.Contains(s, "3 tasks due today") {
			t.Errorf("message missing payload: %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishTaskEventTypes(t *testing.T) {
	b := NewBroker(time.Hour) // throttle long enough that only the first stats event fires
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	task := models.Task{ID: "t1", Text: "buy milk"}
	b.PublishTaskEvent("created", &task)
	b.PublishTaskEvent("reloaded", map[string]string{})

	var got []string
	deadline := time.After(time.Second)
	for len(got) < 3 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-deadline:
			t.Fatalf("received %d messages, want 3: %v", len(got), got)
		}
	}

	if !strings.Contains(got[0], "event: task.created") {
		t.Errorf("first message = %q, want task.created", got[0])
	}
	if !strings.Contains(got[0], `"t1"`) {
		t.Errorf("task payload missing: %q", got[0])
	}
	if !strings.Contains(got[1], "event: stats.updated") {
		t.Errorf("second message = %q, want stats.updated", got[1])
	}
	if !strings.Contains(got[2], "event: tasks.reloaded") {
		t.Errorf("third message = %q, want tasks.reloaded", got[2])
	}
}

func TestStatsThrottle(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 5; i++ {
		b.PublishTaskEvent("updated", map[string]string{})
	}

	var taskEvents, statsEvents int
	timeout := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			switch {
			case strings.Contains(s, "event: task.updated"):
				taskEvents++
			case strings.Contains(s, "event: stats.updated"):
				statsEvents++
			}
			if taskEvents == 5 && statsEvents >= 1 {
				// Drain briefly in case extra stats events slipped through.
				select {
				case msg := <-ch:
					if strings.Contains(string(msg), "event: stats.updated") {
						statsEvents++
					}
				case <-time.After(100 * time.Millisecond):
				}
				break loop
			}
		case <-timeout:
			break loop
		}
	}

	if taskEvents != 5 {
		t.Errorf("task events = %d, want 5", taskEvents)
	}
	if statsEvents != 1 {
		t.Errorf("stats events = %d, want 1 (throttled)", statsEvents)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the handler to register its subscription.
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.PublishTaskEvent("deleted", map[string]string{"id": "t9"})
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after context cancel")
	}

	res := rec.Result()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "event: task.deleted") {
		t.Errorf("body missing event: %q", body)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	// Never read from this subscription; its buffer fills up.
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: "summary", Data: i})
	}

	// The broker loop must still respond.
	done := make(chan int, 1)
	go func() { done <- b.ClientCount() }()
	select {
	case n := <-done:
		if n != 1 {
			t.Errorf("ClientCount = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broker loop blocked by slow client")
	}
}

func TestCloseSemantics(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()

	b.Close()
	b.Close() // idempotent

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after broker close")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed")
	}

	// All operations are safe after close.
	b.Publish(Event{Type: "summary", Data: "x"})
	b.PublishTaskEvent("created", nil)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount after close = %d, want 0", n)
	}
	post := b.Subscribe()
	if _, ok := <-post; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}

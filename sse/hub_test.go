package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	hub := NewHub(nil, opts...)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("client queue closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestHub_PublishFilters(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()

	all := NewClient("all", "")
	digests := NewClient("digests", "digest-*")
	if !hub.Register(ctx, all) || !hub.Register(ctx, digests) {
		t.Fatal("register failed")
	}

	hub.Publish("inbox", EventTypeJob, JobEvent{ID: "inbox", From: "idle", To: "firing"})
	hub.Publish("digest-weekly", EventTypeJob, JobEvent{ID: "digest-weekly", From: "idle", To: "firing"})

	if ev := receive(t, all); !strings.Contains(string(ev.Data), `"id":"inbox"`) {
		t.Errorf("first event for all = %s", ev.Data)
	}
	receive(t, all)

	ev := receive(t, digests)
	var job JobEvent
	if err := json.Unmarshal(ev.Data, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventTypeJob || job.ID != "digest-weekly" || job.To != "firing" {
		t.Errorf("digest event = %s %+v", ev.Type, job)
	}
	select {
	case extra := <-digests.Events():
		t.Errorf("unexpected event %s", extra.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	hub := startHub(t)
	c := NewClient("c1", "*")
	hub.Register(context.Background(), c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d", hub.ClientCount())
	}
	hub.Unregister(c)
	if _, ok := <-c.Events(); ok {
		t.Error("queue should be closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()
	c := NewClient("c1", "*")
	hub.Register(context.Background(), c)

	hub.Stop()
	hub.Stop()
	<-done
	if _, ok := <-c.Events(); ok {
		t.Error("queue should be closed on stop")
	}
	if hub.Register(context.Background(), NewClient("late", "*")) {
		t.Error("register after stop should fail")
	}
	// must not block
	hub.Publish("x", EventTypeJob, JobEvent{ID: "x"})
}

func TestHub_RegisterHonorsContext(t *testing.T) {
	hub := NewHub(nil) // not running
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if hub.Register(ctx, NewClient("c", "*")) {
		t.Error("register without a running hub should fail")
	}
}

func TestClient_DropsWhenFull(t *testing.T) {
	c := NewClient("slow", "*")
	for range clientBuffer {
		if !c.send(Event{Data: []byte("x")}) {
			t.Fatal("send failed before the queue was full")
		}
	}
	if c.send(Event{Data: []byte("overflow")}) {
		t.Error("send should fail when the queue is full")
	}
}

func TestServeSSE(t *testing.T) {
	hub := startHub(t, WithKeepAlive(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(hub, w, r, "client-1", r.URL.Query().Get("job"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?job=digest", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		t.Helper()
		if !lines.Scan() {
			t.Fatalf("stream ended: %v", lines.Err())
		}
		return lines.Text()
	}

	if got := next(); got != "event: connected" {
		t.Fatalf("first line = %q", got)
	}
	if got := next(); !strings.Contains(got, `"filter":"digest"`) {
		t.Errorf("connected data = %q", got)
	}
	next() // blank

	hub.Publish("inbox", EventTypeJob, JobEvent{ID: "inbox"})
	hub.Publish("digest", EventTypeJob, JobEvent{ID: "digest", From: "firing", To: "succeeded"})

	if got := next(); got != "event: job" {
		t.Fatalf("event line = %q", got)
	}
	if got := next(); !strings.Contains(got, `"id":"digest"`) || !strings.Contains(got, `"to":"succeeded"`) {
		t.Errorf("job data = %q", got)
	}
}

func TestServeSSE_BadFilter(t *testing.T) {
	hub := startHub(t)
	rec := httptest.NewRecorder()
	ServeSSE(hub, rec, httptest.NewRequest(http.MethodGet, "/", nil), "c", "[")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestComponent(t *testing.T) {
	c := NewComponent(NewHub(nil), "/jobs/events")
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := c.Health(context.Background()); h.Message != "0 subscribers" {
		t.Errorf("health = %+v", h)
	}
	if d := c.Describe(); d.Details != "GET /jobs/events" {
		t.Errorf("describe = %+v", d)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

package broadcast

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/louisbranch/sharedcart/internal/platform/telemetry/metrics"
)

func register(t *testing.T, r *Router, connectionID string, size int) *Outbox {
	t.Helper()
	box, err := r.Register(connectionID, size)
	if err != nil {
		t.Fatalf("register %s: %v", connectionID, err)
	}
	return box
}

func drain(box *Outbox) []Message {
	var out []Message
	for {
		select {
		case msg, ok := <-box.Messages():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRouter(Options{})
	register(t, r, "c1", 4)
	if _, err := r.Register("c1", 4); !errors.Is(err, ErrDuplicateConnection) {
		t.Fatalf("err = %v, want ErrDuplicateConnection", err)
	}
}

func TestPublishReachesMembersExceptExcluded(t *testing.T) {
	r := NewRouter(Options{})
	a := register(t, r, "a", 4)
	b := register(t, r, "b", 4)
	c := register(t, r, "c", 4)
	r.Join("S1", "a")
	r.Join("S1", "b")
	r.Join("S2", "c")

	delivered, err := r.Publish("S1", "userJoined", map[string]string{"displayName": "Bob"}, "b")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	got := drain(a)
	if len(got) != 1 || got[0].Event != "userJoined" {
		t.Fatalf("a got %+v", got)
	}
	var payload map[string]string
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["displayName"] != "Bob" {
		t.Fatalf("payload = %v", payload)
	}
	if len(drain(b)) != 0 {
		t.Fatal("excluded connection received event")
	}
	if len(drain(c)) != 0 {
		t.Fatal("other session received event")
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	r := NewRouter(Options{})
	a := register(t, r, "a", 8)
	r.Join("S1", "a")

	for _, event := range []string{"itemAdded", "itemUpdated", "itemRemoved"} {
		if _, err := r.Publish("S1", event, struct{}{}, ""); err != nil {
			t.Fatalf("publish %s: %v", event, err)
		}
	}
	got := drain(a)
	want := []string{"itemAdded", "itemUpdated", "itemRemoved"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Event != want[i] {
			t.Fatalf("message %d = %q, want %q", i, got[i].Event, want[i])
		}
	}
}

func TestOverflowEvictsConnection(t *testing.T) {
	rec := metrics.New()
	r := NewRouter(Options{Metrics: rec})
	slow := register(t, r, "slow", 1)
	fast := register(t, r, "fast", 8)
	r.Join("S1", "slow")
	r.Join("S1", "fast")

	for i := 0; i < 3; i++ {
		if _, err := r.Publish("S1", "itemAdded", struct{}{}, ""); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	select {
	case <-slow.Evicted():
	default:
		t.Fatal("expected slow connection to be evicted")
	}
	if got := len(drain(fast)); got != 3 {
		t.Fatalf("fast got %d messages, want 3", got)
	}
	if got := len(drain(slow)); got != 1 {
		t.Fatalf("slow got %d messages, want 1", got)
	}
	if got := testutil.ToFloat64(rec.DeliveriesDropped(metrics.DropOverflow)); got != 1 {
		t.Fatalf("overflow drops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.DeliveriesDropped(metrics.DropDisconnected)); got != 1 {
		t.Fatalf("disconnected drops = %v, want 1", got)
	}
}

func TestUnregisterClosesOutboxAndLeavesRooms(t *testing.T) {
	r := NewRouter(Options{})
	a := register(t, r, "a", 4)
	r.Join("S1", "a")
	r.Join("S2", "a")

	r.Unregister("a")
	if _, ok := <-a.Messages(); ok {
		t.Fatal("expected closed outbox")
	}
	if r.Members("S1") != 0 || r.Members("S2") != 0 {
		t.Fatal("expected rooms to be emptied")
	}
	r.Unregister("a")

	if ok, err := r.Send("a", "sessionJoined", struct{}{}); err != nil || ok {
		t.Fatalf("send after unregister = %v, %v", ok, err)
	}
}

func TestSendTargetsSingleConnection(t *testing.T) {
	r := NewRouter(Options{})
	a := register(t, r, "a", 4)
	b := register(t, r, "b", 4)
	r.Join("S1", "a")
	r.Join("S1", "b")

	ok, err := r.Send("a", "sessionJoined", json.RawMessage(`{"id":"S1"}`))
	if err != nil || !ok {
		t.Fatalf("send = %v, %v", ok, err)
	}
	got := drain(a)
	if len(got) != 1 || string(got[0].Payload) != `{"id":"S1"}` {
		t.Fatalf("a got %+v", got)
	}
	if len(drain(b)) != 0 {
		t.Fatal("b received a direct message")
	}
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	r := NewRouter(Options{})
	if _, err := r.Publish("S1", "itemAdded", make(chan int), ""); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestReplyCarriesRequestID(t *testing.T) {
	r := NewRouter(Options{})
	a := register(t, r, "a", 4)
	if ok, err := r.Reply("a", "req-7", "error", map[string]string{"code": "CART_INVALID_PRICE"}); err != nil || !ok {
		t.Fatalf("reply = %v, %v", ok, err)
	}
	got := drain(a)
	if len(got) != 1 || got[0].RequestID != "req-7" || got[0].Event != "error" {
		t.Fatalf("a got %+v", got)
	}
}

package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSubscribeFiltersByType(t *testing.T) {
	em := NewEmitter()
	var games, all int
	em.Subscribe(EventGameStarted, func(Event) { games++ })
	em.SubscribeAll(func(Event) { all++ })

	em.Emit(Event{Type: EventGameStarted})
	em.Emit(Event{Type: EventRoundEnded})

	if games != 1 {
		t.Errorf("game_started handler: got %d calls want 1", games)
	}
	if all != 2 {
		t.Errorf("catch-all handler: got %d calls want 2", all)
	}
}

// TestPanickingHandlerIsContained checks that later subscribers still run.
func TestPanickingHandlerIsContained(t *testing.T) {
	em := NewEmitter()
	called := false
	em.Subscribe(EventTxFailed, func(Event) { panic("boom") })
	em.Subscribe(EventTxFailed, func(Event) { called = true })

	em.Emit(Event{Type: EventTxFailed})
	if !called {
		t.Error("second handler skipped after a panic")
	}
}

type recorder struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recorder) Publish(subject string, data []byte) error {
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return r.err
}

func TestBridgePublishesJSON(t *testing.T) {
	em := NewEmitter()
	pub := &recorder{}
	Bridge(em, pub, "propchain")

	em.Emit(Event{Type: EventOfferHandled, BlockHeight: 4, Data: map[string]any{"offer_id": 2, "decision": "accept"}})

	if len(pub.subjects) != 1 || pub.subjects[0] != "propchain.offer_handled" {
		t.Fatalf("subjects: %v", pub.subjects)
	}
	var got Event
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != EventOfferHandled || got.BlockHeight != 4 || got.Data["decision"] != "accept" {
		t.Errorf("payload: %+v", got)
	}
}

func TestBridgeSurvivesPublishErrors(t *testing.T) {
	em := NewEmitter()
	pub := &recorder{err: errors.New("disconnected")}
	Bridge(em, pub, "p")

	em.Emit(Event{Type: EventBlockCommit})
	em.Emit(Event{Type: EventBlockCommit})
	if len(pub.subjects) != 2 {
		t.Errorf("publish attempts: got %d want 2", len(pub.subjects))
	}
}

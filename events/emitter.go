package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit EventType = "block_commit"
	EventTxExecuted  EventType = "tx_executed"
	EventTxFailed    EventType = "tx_failed"

	EventTokenTransfer  EventType = "token_transfer"
	EventNftMinted      EventType = "nft_minted"
	EventNftTransferred EventType = "nft_transferred"

	EventNewPlayerRegistered EventType = "new_player_registered"
	EventPointsReceived      EventType = "points_received"
	EventTokenReceived       EventType = "token_received"
	EventNewAdminAdded       EventType = "new_admin_added"
	EventAdminRemoved        EventType = "admin_removed"
	EventPropertyAdded       EventType = "property_added"
	EventPropertyRemoved     EventType = "property_removed"
	EventRoundStarted        EventType = "round_started"
	EventRoundEnded          EventType = "round_ended"
	EventGameStarted         EventType = "game_started"
	EventAnswerSubmitted     EventType = "answer_submitted"
	EventGameExpired         EventType = "game_expired"

	EventNftListed      EventType = "nft_listed"
	EventNftDelisted    EventType = "nft_delisted"
	EventOfferMade      EventType = "offer_made"
	EventOfferWithdrawn EventType = "offer_withdrawn"
	EventOfferHandled   EventType = "offer_handled"
)

// All lists every event type, for subscribers that want the full stream.
var All = []EventType{
	EventBlockCommit, EventTxExecuted, EventTxFailed,
	EventTokenTransfer, EventNftMinted, EventNftTransferred,
	EventNewPlayerRegistered, EventPointsReceived, EventTokenReceived,
	EventNewAdminAdded, EventAdminRemoved, EventPropertyAdded, EventPropertyRemoved,
	EventRoundStarted, EventRoundEnded, EventGameStarted, EventAnswerSubmitted, EventGameExpired,
	EventNftListed, EventNftDelisted, EventOfferMade, EventOfferWithdrawn, EventOfferHandled,
}

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id,omitempty"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every known event type.
func (e *Emitter) SubscribeAll(h Handler) {
	for _, typ := range All {
		e.Subscribe(typ, h)
	}
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("event", string(ev.Type)).Interface("panic", r).Msg("event handler panicked")
				}
			}()
			h(ev)
		}()
	}
}

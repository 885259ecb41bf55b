package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is the subset of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials a NATS server. token may be empty.
func ConnectNATS(url, token, name string) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name(name)}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return nats.Connect(url, opts...)
}

// Bridge republishes every event on em to pub as JSON under
// "<prefix>.<event type>".
func Bridge(em *Emitter, pub Publisher, prefix string) {
	em.SubscribeAll(func(ev Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Msg("nats: marshal event")
			return
		}
		if err := pub.Publish(prefix+"."+string(ev.Type), data); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Msg("nats: publish event")
		}
	})
}

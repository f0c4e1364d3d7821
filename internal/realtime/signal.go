package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SignalKind names the transient events carried on a ticket topic.
type SignalKind string

const (
	SignalTyping      SignalKind = "typing"
	SignalRead        SignalKind = "read"
	SignalMessageSent SignalKind = "message_sent"
)

// Signal is one broadcast event. Nothing about it is persisted.
type Signal struct {
	Kind      SignalKind `json:"event"`
	IsAdmin   bool       `json:"is_admin"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
	// Origin identifies the sending topic handle so a subscriber can drop
	// its own broadcasts.
	Origin string `json:"origin,omitempty"`
}

// EncodeSignal serializes a signal for the wire.
func EncodeSignal(sig Signal) ([]byte, error) {
	switch sig.Kind {
	case SignalTyping, SignalRead, SignalMessageSent:
	default:
		return nil, fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
	return json.Marshal(sig)
}

// DecodeSignal parses a wire payload, rejecting unknown kinds.
func DecodeSignal(payload []byte) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return Signal{}, err
	}
	switch sig.Kind {
	case SignalTyping, SignalMessageSent:
	case SignalRead:
		if sig.Timestamp.IsZero() {
			return Signal{}, fmt.Errorf("read signal without timestamp")
		}
	default:
		return Signal{}, fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
	return sig, nil
}

// Subscription is a handle on a change feed subscription.
// Close must be safe to call more than once.
type Subscription interface {
	Close() error
}

// Topic is a joined per-ticket signal channel.
// Close must be safe to call more than once.
type Topic interface {
	Send(ctx context.Context, sig Signal) error
	Close() error
}

package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSignals carries ticket signals over Redis pub/sub. Nothing is
// stored; a subscriber that is not connected simply misses the event.
type RedisSignals struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisSignals builds the signal channel. prefix namespaces the pub/sub
// channel names, e.g. "ticket" gives "ticket:<id>:signals".
func NewRedisSignals(client *redis.Client, prefix string, logger *zap.Logger) *RedisSignals {
	if prefix == "" {
		prefix = "ticket"
	}
	return &RedisSignals{client: client, prefix: prefix, logger: logger}
}

// ChannelName returns the pub/sub channel for a ticket.
func (r *RedisSignals) ChannelName(ticketID string) string {
	return r.prefix + ":" + ticketID + ":signals"
}

// Join subscribes to the ticket channel and starts delivering signals to fn.
func (r *RedisSignals) Join(ctx context.Context, ticketID string, fn func(Signal)) (Topic, error) {
	if r.client == nil {
		return nil, errors.New("redis client not configured")
	}
	channel := r.ChannelName(ticketID)
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	topic := &redisTopic{
		client:  r.client,
		channel: channel,
		origin:  uuid.NewString(),
		pubsub:  ps,
		logger:  r.logger,
		done:    make(chan struct{}),
	}
	go topic.consume(fn)
	return topic, nil
}

type redisTopic struct {
	client  *redis.Client
	channel string
	origin  string
	pubsub  *redis.PubSub
	logger  *zap.Logger

	once sync.Once
	done chan struct{}
}

func (t *redisTopic) consume(fn func(Signal)) {
	defer close(t.done)
	for msg := range t.pubsub.Channel() {
		sig, err := DecodeSignal([]byte(msg.Payload))
		if err != nil {
			t.logger.Debug("discarding malformed signal", zap.String("channel", t.channel), zap.Error(err))
			continue
		}
		if sig.Origin == t.origin {
			continue
		}
		fn(sig)
	}
}

func (t *redisTopic) Send(ctx context.Context, sig Signal) error {
	select {
	case <-t.done:
		return ErrTopicClosed
	default:
	}
	sig.Origin = t.origin
	payload, err := EncodeSignal(sig)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, t.channel, payload).Err()
}

func (t *redisTopic) Close() error {
	var err error
	t.once.Do(func() {
		err = t.pubsub.Close()
		<-t.done
	})
	return err
}

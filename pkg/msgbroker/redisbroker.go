package msgbroker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// pubSubConn is the slice of *redis.PubSub the broker uses. go-redis
// satisfies it directly; tests substitute a fake whose channel they
// can kill.
type pubSubConn interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	PSubscribe(ctx context.Context, patterns ...string) error
	PUnsubscribe(ctx context.Context, patterns ...string) error
	Close() error
}

// redisBroker is the implementation of MessageBroker using Redis pub/sub.
//
// The subscription is supervised: go-redis reconnects and re-issues
// PSUBSCRIBE on network errors by itself, but if the message channel
// dies for any reason other than Close, the broker opens a fresh
// subscription for all registered patterns with exponential backoff.
// Live delivery depends on this subscription staying up, so a silent
// death is not acceptable.
//
// Handlers run on the dispatch goroutine, one message at a time in
// arrival order. A handler that needs to do slow work must hand it
// off itself.
type redisBroker struct {
	client    *redis.Client
	subscribe func(patterns ...string) pubSubConn

	retryBase time.Duration
	retryMax  time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	pubSub   pubSubConn
	done     chan struct{}
}

const (
	resubscribeBase = time.Second
	resubscribeMax  = 30 * time.Second
)

// NewRedisBroker returns an implementation of MessageBroker using Redis
func NewRedisBroker(client *redis.Client) MessageBroker {
	subscribe := func(patterns ...string) pubSubConn {
		return client.PSubscribe(context.Background(), patterns...)
	}
	return newBroker(client, subscribe, resubscribeBase, resubscribeMax)
}

func newBroker(client *redis.Client, subscribe func(patterns ...string) pubSubConn, retryBase, retryMax time.Duration) *redisBroker {
	rb := &redisBroker{
		client:    client,
		subscribe: subscribe,
		retryBase: retryBase,
		retryMax:  retryMax,
		handlers:  make(map[string]MessageHandler),
		pubSub:    subscribe(),
		done:      make(chan struct{}),
	}
	go rb.serveMessages()
	return rb
}

func (rb *redisBroker) serveMessages() {
	delay := rb.retryBase
	for {
		rb.mu.RLock()
		ps := rb.pubSub
		rb.mu.RUnlock()

		for msg := range ps.Channel() {
			delay = rb.retryBase
			rb.dispatch(msg)
		}

		select {
		case <-rb.done:
			return
		default:
		}

		slog.Warn("msgbroker: pubsub channel closed, resubscribing", "delay", delay)
		time.Sleep(delay)
		if delay *= 2; delay > rb.retryMax {
			delay = rb.retryMax
		}

		rb.mu.Lock()
		patterns := make([]string, 0, len(rb.handlers))
		for p := range rb.handlers {
			patterns = append(patterns, p)
		}
		rb.pubSub = rb.subscribe(patterns...)
		rb.mu.Unlock()
	}
}

// dispatch invokes the handler synchronously so subscribers see
// messages in the order they arrived on the wire.
func (rb *redisBroker) dispatch(msg *redis.Message) {
	rb.mu.RLock()
	handler, exists := rb.handlers[msg.Pattern]
	rb.mu.RUnlock()
	if exists {
		handler(&Message{
			Channel: msg.Channel,
			Data:    []byte(msg.Payload),
		})
	}
}

func (rb *redisBroker) Publish(msg []byte, channel string) error {
	return rb.client.Publish(context.Background(), channel, string(msg)).Err()
}

func (rb *redisBroker) Subscribe(pattern string, cb MessageHandler) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if err := rb.pubSub.PSubscribe(context.Background(), pattern); err != nil {
		return err
	}
	rb.handlers[pattern] = cb
	return nil
}

func (rb *redisBroker) Unsubscribe(patterns ...string) error {
	if len(patterns) == 0 {
		return nil
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for _, p := range patterns {
		delete(rb.handlers, p)
	}
	return rb.pubSub.PUnsubscribe(context.Background(), patterns...)
}

func (rb *redisBroker) Close() error {
	select {
	case <-rb.done:
	default:
		close(rb.done)
	}
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.pubSub.Close()
}

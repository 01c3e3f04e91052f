package notifier

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/yshare/yshare/internal/domain"
	"github.com/yshare/yshare/pkg/msgbroker"

	"github.com/gammazero/workerpool"
)

// Share events travel on one broker channel per room. Whoever persists
// a message publishes here; the notifier is the only subscriber and the
// single path from a durable write to a live broadcast.
const channelPrefix = "shares:"

// ShareChannel returns the broker channel for one room's share events.
func ShareChannel(roomCode string) string {
	return channelPrefix + roomCode
}

// SharePattern matches every room's share channel.
const SharePattern = channelPrefix + "*"

// Broadcaster delivers a stored message to a room's live connections.
type Broadcaster interface {
	NotifyShare(msg domain.Message)
}

// Notifier turns insert events into hub broadcasts. Events for the
// same room go out in the order they arrive; the pool only bounds
// concurrency across rooms.
type Notifier struct {
	broker      msgbroker.MessageBroker
	broadcaster Broadcaster
	pool        *workerpool.WorkerPool

	mu     sync.Mutex
	queues map[string]*roomQueue
}

// roomQueue holds one room's pending events. At most one drain runs
// per room at a time, which is what keeps the order.
type roomQueue struct {
	events   []domain.Message
	draining bool
}

func New(broker msgbroker.MessageBroker, b Broadcaster, maxWorkers int) *Notifier {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Notifier{
		broker:      broker,
		broadcaster: b,
		pool:        workerpool.New(maxWorkers),
		queues:      make(map[string]*roomQueue),
	}
}

// Run subscribes to share events. The broker supervises the
// subscription after that; see msgbroker.
func (n *Notifier) Run() error {
	return n.broker.Subscribe(SharePattern, n.handle)
}

// handle runs on the broker's dispatch goroutine, so events are
// enqueued in arrival order.
func (n *Notifier) handle(msg *msgbroker.Message) {
	if !strings.HasPrefix(msg.Channel, channelPrefix) {
		return
	}
	var m domain.Message
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		slog.Warn("notifier: bad share event", "err", err)
		return
	}
	n.enqueue(m)
}

func (n *Notifier) enqueue(m domain.Message) {
	n.mu.Lock()
	q, ok := n.queues[m.RoomCode]
	if !ok {
		q = &roomQueue{}
		n.queues[m.RoomCode] = q
	}
	q.events = append(q.events, m)
	if q.draining {
		n.mu.Unlock()
		return
	}
	q.draining = true
	n.mu.Unlock()

	roomCode := m.RoomCode
	n.pool.Submit(func() { n.drain(roomCode) })
}

func (n *Notifier) drain(roomCode string) {
	for {
		n.mu.Lock()
		q := n.queues[roomCode]
		if len(q.events) == 0 {
			delete(n.queues, roomCode)
			n.mu.Unlock()
			return
		}
		m := q.events[0]
		q.events = q.events[1:]
		n.mu.Unlock()

		n.broadcaster.NotifyShare(m)
	}
}

// Close stops accepting events and waits for in-flight broadcasts.
func (n *Notifier) Close() {
	_ = n.broker.Unsubscribe(SharePattern)
	n.pool.StopWait()
}

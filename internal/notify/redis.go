package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"onchainblackjack/internal/engine"
)

// Message is the pub/sub payload. ID lets consumers drop duplicates when the
// same ledger is replayed by several publishers.
type Message struct {
	ID           string              `json:"id"`
	PublishedAt  time.Time           `json:"publishedAt"`
	Notification engine.Notification `json:"notification"`
}

// EpisodeChannel is the pub/sub channel for one episode.
func EpisodeChannel(prefix, episodeID string) string {
	return fmt.Sprintf("%s:episode:%s", prefix, episodeID)
}

// AllEpisodesPattern matches every episode channel under prefix.
func AllEpisodesPattern(prefix string) string {
	return prefix + ":episode:*"
}

type RedisOption func(*RedisSink)

// RedisQueueSize bounds the notifications waiting to be published.
func RedisQueueSize(n int) RedisOption {
	return func(s *RedisSink) { s.queueSize = n }
}

func RedisTimeout(d time.Duration) RedisOption {
	return func(s *RedisSink) { s.timeout = d }
}

func RedisLogger(l log.Logger) RedisOption {
	return func(s *RedisSink) { s.logger = l }
}

// RedisSink publishes notifications on Redis pub/sub from a background
// goroutine. Notify never blocks: when the queue is full the notification is
// dropped and counted.
type RedisSink struct {
	rdb       *redis.Client
	prefix    string
	queueSize int
	timeout   time.Duration
	logger    log.Logger

	queue   chan engine.Notification
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewRedisSink(rdb *redis.Client, prefix string, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		rdb:       rdb,
		prefix:    prefix,
		queueSize: 256,
		timeout:   2 * time.Second,
		logger:    log.NewNopLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "notify/redis")
	s.queue = make(chan engine.Notification, s.queueSize)
	s.done = make(chan struct{})
	go s.run()
	return s
}

func (s *RedisSink) Notify(n engine.Notification) {
	select {
	case s.queue <- n:
	default:
		s.dropped.Add(1)
	}
}

func (s *RedisSink) run() {
	defer close(s.done)
	for n := range s.queue {
		if err := s.publish(n); err != nil {
			s.failed.Add(1)
			s.logger.Error("publish notification", "episode", n.EpisodeID, "pos", n.Position, "err", err)
		}
	}
}

func (s *RedisSink) publish(n engine.Notification) error {
	b, err := json.Marshal(Message{ID: uuid.NewString(), PublishedAt: time.Now().UTC(), Notification: n})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.rdb.Publish(ctx, EpisodeChannel(s.prefix, n.EpisodeID), b).Err()
}

// Close stops accepting notifications and waits until the queue is drained.
// Notify must not be called after Close.
func (s *RedisSink) Close() {
	s.once.Do(func() { close(s.queue) })
	<-s.done
}

func (s *RedisSink) Dropped() uint64 { return s.dropped.Load() }

func (s *RedisSink) Failed() uint64 { return s.failed.Load() }

// Watch subscribes to every episode channel under prefix and hands decoded
// notifications to sink until ctx is done. Malformed payloads are skipped.
func Watch(ctx context.Context, rdb *redis.Client, prefix string, sink engine.Notifier) error {
	pubsub := rdb.PSubscribe(ctx, AllEpisodesPattern(prefix))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", AllEpisodesPattern(prefix), err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue
			}
			sink.Notify(m.Notification)
		}
	}
}

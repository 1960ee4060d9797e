// Redis pub/sub collaboration adapter.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/barocss/editor-core/pkg/document"
)

// envelope is the wire frame published to the op channel. The client id
// lets subscribers drop their own publications.
type envelope struct {
	ClientID string      `json:"clientId"`
	User     string      `json:"user,omitempty"`
	Op       document.Op `json:"op"`
}

// RedisAdapter broadcasts local ops on a Redis channel and applies ops
// published by other clients. One channel carries one document.
type RedisAdapter struct {
	client  *redis.Client
	channel string
	cfg     Config
	log     *zap.Logger

	base   base
	cancel context.CancelFunc
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisClient builds a go-redis client with the timeouts this adapter
// expects.
func NewRedisClient(addr string, db int, log *zap.Logger) *redis.Client {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	}
	log.Info("redis client initialized", zap.String("addr", addr), zap.Int("db", db))
	return redis.NewClient(opts)
}

// NewRedisAdapter creates an adapter publishing on the given channel.
func NewRedisAdapter(client *redis.Client, channel string, cfg Config, log *zap.Logger) *RedisAdapter {
	return &RedisAdapter{
		client:  client,
		channel: channel,
		cfg:     cfg.withDefaults(),
		log:     log.Named("collab"),
	}
}

// ClientID returns the adapter's client identity on the channel.
func (a *RedisAdapter) ClientID() string {
	return a.cfg.ClientID
}

// Connect attaches to the store and starts the subscribe loop.
func (a *RedisAdapter) Connect(st Store) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.pubsub = a.client.Subscribe(ctx, a.channel)
	if _, err := a.pubsub.Receive(ctx); err != nil {
		cancel()
		return fmt.Errorf("subscribe %q: %w", a.channel, err)
	}

	a.base = base{cfg: a.cfg, log: a.log, send: a.SendOperation}
	a.base.connect(st)

	a.done = make(chan struct{})
	go a.loop(ctx)

	a.log.Info("connected",
		zap.String("channel", a.channel),
		zap.String("clientId", a.cfg.ClientID))
	return nil
}

func (a *RedisAdapter) loop(ctx context.Context) {
	defer close(a.done)
	ch := a.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				a.log.Warn("drop malformed op frame", zap.Error(err))
				continue
			}
			if env.ClientID == a.cfg.ClientID {
				continue
			}
			if err := a.ReceiveOperation(env.Op); err != nil {
				a.log.Warn("apply remote op failed",
					zap.String("nodeId", string(env.Op.NodeID)),
					zap.Error(err))
			}
		}
	}
}

// Disconnect stops the subscribe loop and detaches from the store.
func (a *RedisAdapter) Disconnect() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.pubsub != nil {
		_ = a.pubsub.Close()
	}
	if a.done != nil {
		<-a.done
	}
	a.base.disconnect()
	a.log.Info("disconnected", zap.String("channel", a.channel))
	return nil
}

// SendOperation publishes a local op to the channel.
func (a *RedisAdapter) SendOperation(op document.Op) error {
	payload, err := json.Marshal(envelope{
		ClientID: a.cfg.ClientID,
		User:     a.cfg.User,
		Op:       op,
	})
	if err != nil {
		return fmt.Errorf("marshal op: %w", err)
	}
	if a.cfg.Debug {
		a.log.Debug("publish op",
			zap.String("type", string(op.Type)),
			zap.String("nodeId", string(op.NodeID)))
	}
	return a.client.Publish(context.Background(), a.channel, payload).Err()
}

// ReceiveOperation applies a remote op with echo suppression.
func (a *RedisAdapter) ReceiveOperation(op document.Op) error {
	return a.base.receive(op)
}

var _ Adapter = (*RedisAdapter)(nil)

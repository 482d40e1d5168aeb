package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coursepulse/coursepulse/pkg/channel"
	"github.com/coursepulse/coursepulse/server/internal/config"
)

// wireEnvelope wraps a published envelope with the originating instance ID
// so that a node can skip its own messages coming back off the channel.
type wireEnvelope struct {
	InstanceID string           `json:"instance_id"`
	Stream     string           `json:"stream"`
	Envelope   channel.Envelope `json:"envelope"`
}

// RedisBridge relays stream envelopes between server instances via Redis
// pub/sub, so clients connected to different instances see the same traffic.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	target     LocalTarget

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge that uses Redis pub/sub for cross-instance
// fan-out. The target receives envelopes published by other instances.
func NewRedisBridge(cfg config.BridgeConfig, target LocalTarget) *RedisBridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password(),
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		target:     target,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the Redis broadcast channel and begins relaying.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	ch := b.prefix + "broadcast"
	sub := b.client.Subscribe(b.ctx, ch)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(b.ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	slog.Info("bridge: started", "instance_id", b.instanceID, "channel", ch)
	return nil
}

// Publish sends an envelope to all other instances.
func (b *RedisBridge) Publish(stream string, env channel.Envelope) error {
	wire := wireEnvelope{
		InstanceID: b.instanceID,
		Stream:     stream,
		Envelope:   env,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	return b.client.Publish(b.ctx, b.prefix+"broadcast", data).Err()
}

// Stop unsubscribes and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// listen reads envelopes from the Redis subscription and forwards them to
// the local hub.
func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg)
		case <-b.ctx.Done():
			return
		}
	}
}

// handle decodes a wire envelope and forwards non-self messages locally.
func (b *RedisBridge) handle(msg *redis.Message) {
	var wire wireEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
		slog.Error("bridge: failed to decode message", "error", err)
		return
	}

	// Skip messages that originated from this instance.
	if wire.InstanceID == b.instanceID {
		return
	}

	slog.Debug("bridge: relaying envelope", "from_instance", wire.InstanceID, "stream", wire.Stream)
	b.target.PublishLocal(wire.Stream, wire.Envelope)
}

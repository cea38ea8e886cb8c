package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one decoded event. Returning an error leaves the message
// un-acked so the stream redelivers it.
type Handler func(ctx context.Context, event Event) error

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
}

// Subscriber reads a Redis Stream through a consumer group and feeds each
// event to its handler. Balance events are small and frequent, so the
// defaults favour short blocking reads over large batches.
type Subscriber struct {
	client *redis.Client
	cfg    SubscriberConfig
}

func NewSubscriber(client *redis.Client, cfg SubscriberConfig) *Subscriber {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 16
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 2 * time.Second
	}
	return &Subscriber{client: client, cfg: cfg}
}

// Start consumes the stream until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", s.cfg.Group, err)
	}

	log.Printf("Consuming %s as %s/%s", s.cfg.Stream, s.cfg.Group, s.cfg.Consumer)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopped consuming %s", s.cfg.Stream)
			return ctx.Err()
		default:
			if err := s.consumeBatch(ctx); err != nil {
				log.Printf("Failed to read %s: %v", s.cfg.Stream, err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) consumeBatch(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.BatchSize,
		Block:    s.cfg.BlockDuration,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			event, err := decodeEvent(message)
			if err != nil {
				log.Printf("Dropping undecodable message %s: %v", message.ID, err)
				// Undecodable messages can never succeed; ack to move on.
				s.ack(ctx, message.ID)
				continue
			}
			if err := s.cfg.Handler(ctx, event); err != nil {
				log.Printf("Failed to handle message %s: %v", message.ID, err)
				// Left un-acked for redelivery.
				continue
			}
			s.ack(ctx, message.ID)
		}
	}
	return nil
}

func (s *Subscriber) ack(ctx context.Context, messageID string) {
	if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, messageID).Err(); err != nil {
		log.Printf("Failed to ack message %s: %v", messageID, err)
	}
}

func decodeEvent(message redis.XMessage) (Event, error) {
	raw, ok := message.Values["event"].(string)
	if !ok {
		return Event{}, fmt.Errorf("message has no event field")
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

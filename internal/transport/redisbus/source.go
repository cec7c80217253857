// Package redisbus reads runner events relayed over Redis pub/sub.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/transport"
)

const (
	sourceName = "redis"

	// DefaultChannel is the pub/sub channel the relay publishes to
	DefaultChannel = "mapminer:events"

	defaultHealthInterval = 30 * time.Second
)

// Config holds Redis connection configuration
type Config struct {
	URL      string
	Addr     string
	Password string
	DB       int
	Channel  string
	// HealthInterval is the idle time after which the subscription is pinged
	HealthInterval time.Duration
	Backoff        transport.Backoff
	Logger         logrus.FieldLogger
}

// Source subscribes to the relay channel
type Source struct {
	client         *redis.Client
	channel        string
	healthInterval time.Duration
	backoff        transport.Backoff
	log            logrus.FieldLogger
}

// New creates a Source. The connection is opened by Run.
func New(cfg Config) (*Source, error) {
	var client *redis.Client

	switch {
	case cfg.URL != "":
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opt.DialTimeout = 5 * time.Second
		client = redis.NewClient(opt)
	case cfg.Addr != "":
		client = redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 5 * time.Second,
		})
	default:
		return nil, fmt.Errorf("redis URL or address is required")
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	health := cfg.HealthInterval
	if health <= 0 {
		health = defaultHealthInterval
	}

	backoff := cfg.Backoff
	if backoff.Initial <= 0 {
		backoff = transport.DefaultBackoff()
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Source{
		client:         client,
		channel:        channel,
		healthInterval: health,
		backoff:        backoff,
		log:            log.WithFields(logrus.Fields{"component": "redisbus", "channel": channel}),
	}, nil
}

// Name implements transport.Source
func (s *Source) Name() string {
	return sourceName
}

// Close releases the Redis client
func (s *Source) Close() error {
	return s.client.Close()
}

// Run subscribes and delivers events until ctx ends
func (s *Source) Run(ctx context.Context, out chan<- transport.Event) error {
	policy := s.backoff.Policy()

	for {
		connected, err := s.subscribe(ctx, out)
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			policy.Reset()
			if !transport.Emit(ctx, out, transport.Disconnected(sourceName, err)) {
				return nil
			}
		}

		delay := policy.NextBackOff()

		s.log.WithError(err).WithField("retry_in", delay).Warn("event relay unavailable")

		if !transport.Sleep(ctx, delay) {
			return nil
		}
	}
}

func (s *Source) subscribe(ctx context.Context, out chan<- transport.Event) (bool, error) {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	// The first reply confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		return false, fmt.Errorf("redis subscribe failed: %w", err)
	}

	s.log.Info("subscribed to event relay")

	if !transport.Emit(ctx, out, transport.Connected()) {
		return true, ctx.Err()
	}

	for {
		msg, err := ps.ReceiveTimeout(ctx, s.healthInterval)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if perr := ps.Ping(ctx); perr != nil {
					return true, fmt.Errorf("redis ping failed: %w", perr)
				}
				continue
			}
			return true, err
		}

		m, ok := msg.(*redis.Message)
		if !ok {
			continue
		}

		ev, err := transport.DecodeEnvelope([]byte(m.Payload))
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed relay message")
			continue
		}

		if !transport.Emit(ctx, out, ev) {
			return true, ctx.Err()
		}
	}
}

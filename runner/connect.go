package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/mapminer/internal/artifact"
	"github.com/sadewadee/mapminer/internal/session"
	"github.com/sadewadee/mapminer/internal/transport"
	"github.com/sadewadee/mapminer/internal/transport/amqpbus"
	"github.com/sadewadee/mapminer/internal/transport/redisbus"
	"github.com/sadewadee/mapminer/internal/transport/socketio"
)

// Connection is the channel and session every client mode drives
type Connection struct {
	Channel *transport.Channel
	Session *session.Session

	closers []io.Closer
}

// NewSource builds the event source selected by cfg.EventSource
func NewSource(cfg *Config, log logrus.FieldLogger) (transport.Source, error) {
	switch cfg.EventSource {
	case SourceSocketIO:
		return socketio.New(socketio.Config{
			RunnerURL:        cfg.RunnerURL,
			APIToken:         cfg.APIToken,
			HandshakeTimeout: cfg.CommandTimeout,
			Logger:           log,
		})
	case SourceRedis:
		return redisbus.New(redisbus.Config{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
			Logger:   log,
		})
	case SourceAMQP:
		return amqpbus.New(amqpbus.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
			Logger:   log,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, cfg.EventSource)
	}
}

// Connect wires the transport and a session for cfg. Nothing is dialed
// until Run.
func Connect(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*Connection, error) {
	source, err := NewSource(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create event source: %w", err)
	}

	client := transport.NewClient(cfg.RunnerURL,
		transport.WithAPIToken(cfg.APIToken),
		transport.WithCommandTimeout(cfg.CommandTimeout),
		transport.WithDownloadTimeout(cfg.DownloadTimeout),
	)

	opts := []transport.ChannelOption{transport.WithLogger(log)}

	if cfg.AwsRegion != "" {
		fetcher, err := artifact.NewS3Fetcher(ctx, artifact.S3Config{
			Region:    cfg.AwsRegion,
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithArtifactFetcher(fetcher))
	}

	channel := transport.NewChannel(source, client, opts...)

	c := &Connection{
		Channel: channel,
		Session: session.New(channel,
			session.WithLogger(log),
			session.WithTelemetry(Telemetry()),
		),
	}

	if closer, ok := source.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	return c, nil
}

// Run keeps the event stream and the session loop alive until ctx ends
func (c *Connection) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return c.Channel.Run(ctx)
	})

	egroup.Go(func() error {
		return c.Session.Run(ctx)
	})

	return egroup.Wait()
}

// Close releases the source connection pools
func (c *Connection) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}

	return errors.Join(errs...)
}

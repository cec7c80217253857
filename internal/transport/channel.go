package transport

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/domain"
)

// Source produces runner events on out until ctx ends.
// Implementations reconnect on their own and report each loss with a
// disconnect event and each recovery with a connect event.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- Event) error
}

// ArtifactFetcher retrieves artifacts addressed by a locator scheme
type ArtifactFetcher interface {
	Scheme() string
	Fetch(ctx context.Context, locator string) (io.ReadCloser, error)
}

// Channel combines one event source with the command client
type Channel struct {
	source   Source
	client   *Client
	fetchers []ArtifactFetcher
	events   chan Event
	log      logrus.FieldLogger
}

// ChannelOption configures a Channel
type ChannelOption func(*Channel)

// WithArtifactFetcher routes locators with the fetcher's scheme away from the runner
func WithArtifactFetcher(f ArtifactFetcher) ChannelOption {
	return func(c *Channel) {
		c.fetchers = append(c.fetchers, f)
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(l logrus.FieldLogger) ChannelOption {
	return func(c *Channel) {
		c.log = l
	}
}

// NewChannel creates a channel. Events are undelivered until Run is called.
func NewChannel(source Source, client *Client, opts ...ChannelOption) *Channel {
	c := &Channel{
		source: source,
		client: client,
		events: make(chan Event),
		log:    logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.WithField("component", "transport")

	return c
}

// Events returns the ordered event stream. It is closed when Run returns.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Run keeps the event connection open until ctx ends
func (c *Channel) Run(ctx context.Context) error {
	defer close(c.events)

	c.log.WithFields(logrus.Fields{
		"source": c.source.Name(),
		"runner": c.client.BaseURL(),
	}).Info("event stream starting")

	err := c.source.Run(ctx, c.events)
	if err != nil && ctx.Err() == nil {
		c.log.WithError(err).Error("event stream stopped")
		return err
	}

	c.log.Info("event stream stopped")

	return nil
}

// Start submits cfg to the runner
func (c *Channel) Start(ctx context.Context, cfg domain.JobConfiguration) error {
	return c.client.Start(ctx, cfg)
}

// Stop requests cooperative cancellation of the current run
func (c *Channel) Stop(ctx context.Context) error {
	return c.client.Stop(ctx)
}

// Status fetches the runner's full status
func (c *Channel) Status(ctx context.Context) (*domain.StatusPayload, error) {
	return c.client.Status(ctx)
}

// FetchArtifact streams the artifact at path
func (c *Channel) FetchArtifact(ctx context.Context, path string) (io.ReadCloser, error) {
	for _, f := range c.fetchers {
		if strings.HasPrefix(path, f.Scheme()+"://") {
			c.log.WithField("locator", path).Debug("fetching artifact from object storage")
			return f.Fetch(ctx, path)
		}
	}

	return c.client.FetchArtifact(ctx, path)
}

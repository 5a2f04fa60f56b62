package crawl

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/cjdelisle/cjdnswalk/internal/directory"
	"github.com/cjdelisle/cjdnswalk/internal/graph"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

const (
	// DefaultCycleTime is the period of the dispatch tick.
	DefaultCycleTime = 50 * time.Millisecond

	// DefaultInfoInterval is the period of the progress tick, which also
	// detects completion.
	DefaultInfoInterval = 5 * time.Second

	// eventBacklog bounds timer callbacks waiting for the event loop.
	eventBacklog = 256

	probeSecretSize = 32
)

// Sender writes frames to the router.
type Sender interface {
	Send(f wire.Frame) error
}

// Self describes the local node.
type Self struct {
	// Name is the local node's name. Its path is label.Self.
	Name label.NodeName

	// Scheme is the wire form of the local encoding scheme.
	Scheme []byte
}

// Stats summarizes the state of a session.
type Stats struct {
	Nodes       int
	Visited     int
	Queued      int
	Outstanding int
	Links       int
	Horizons    int
	Failures    int
}

type answerKey struct {
	kind   string
	target string
	near   label.Label
}

type linkKey struct {
	parent string
	child  string
}

// Session is one crawl run. It is created for a single bootstrap peer and
// discarded when Run returns.
type Session struct {
	id string

	self       Self
	selfScheme label.Scheme
	selfNode   *directory.Node

	dir   *directory.Directory
	corr  *Correlator
	sched *Scheduler
	probe *Probe
	emit  *graph.Emitter
	link  Sender

	clock         Clock
	rand          io.Reader
	log           *slog.Logger
	meterProvider metric.MeterProvider
	metrics       *crawlMetrics
	policy        RetryPolicy
	cycle         time.Duration
	infoInterval  time.Duration

	// answered stamps the latest accepted response per query shape.
	answered map[answerKey]uint64

	// confirmed stamps the latest confirmation per parent/child link.
	confirmed map[linkKey]uint64

	// ctx is the context of Run, or context.Background outside of it.
	ctx context.Context

	// post delivers timer callbacks to the event loop.
	post func(func())

	started bool
	fatal   error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithClock sets the time source for retry timers and timestamps.
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithMeterProvider sets the provider of crawl metrics. The global provider
// is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Session) {
		s.meterProvider = mp
	}
}

// WithRetryPolicy sets the retry interval and budget.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithCycleTime sets the period of the dispatch tick used by Run.
func WithCycleTime(d time.Duration) Option {
	return func(s *Session) {
		s.cycle = d
	}
}

// WithInfoInterval sets the period of the progress tick used by Run.
func WithInfoInterval(d time.Duration) Option {
	return func(s *Session) {
		s.infoInterval = d
	}
}

// WithRandom sets the source of correlation ids and the probe secret.
func WithRandom(r io.Reader) Option {
	return func(s *Session) {
		s.rand = r
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession prepares a crawl from the local node self. Queries and probes
// are written to link and discovered facts to emit.
func NewSession(self Self, link Sender, emit *graph.Emitter, opts ...Option) (*Session, error) {
	s := &Session{
		id:            uuid.NewString(),
		self:          self,
		dir:           directory.New(),
		corr:          NewCorrelator(),
		sched:         NewScheduler(),
		emit:          emit,
		link:          link,
		clock:         systemClock{},
		rand:          rand.Reader,
		log:           slog.Default(),
		meterProvider: otel.GetMeterProvider(),
		policy:        DefaultRetryPolicy(),
		cycle:         DefaultCycleTime,
		infoInterval:  DefaultInfoInterval,
		answered:      make(map[answerKey]uint64),
		confirmed:     make(map[linkKey]uint64),
		ctx:           context.Background(),
		post:          func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("crawl", s.id)

	scheme, err := label.ParseScheme(self.Scheme)
	if err != nil {
		return nil, fmt.Errorf("local node: %w", err)
	}
	s.selfScheme = scheme

	s.metrics, err = newCrawlMetrics(s.meterProvider)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, probeSecretSize)
	if _, err := io.ReadFull(s.rand, secret); err != nil {
		return nil, fmt.Errorf("failed to generate probe secret: %w", err)
	}
	s.probe, err = NewProbe(link, self.Name, secret, s.log)
	if err != nil {
		return nil, fmt.Errorf("local node: %w", err)
	}

	s.selfNode, _, err = s.dir.GetOrCreate(self.Name.Key, self.Scheme, self.Name)
	if err != nil {
		return nil, err
	}
	if _, err := emit.Node(self.Name); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Directory returns the node directory.
func (s *Session) Directory() *directory.Directory { return s.dir }

// Start primes the crawl with a get-peers query to bootstrap, a direct peer
// of the local node.
func (s *Session) Start(bootstrap label.NodeName) error {
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.log.Info("starting crawl", "bootstrap", bootstrap.String())
	return s.issue(s.newQuery(wire.QueryGetPeers, bootstrap, label.Self, s.selfNode, bootstrap.Path, nil))
}

// Run drives the session until the crawl completes, ctx is cancelled, in
// is closed or a protocol violation occurs. It returns nil on completion.
func (s *Session) Run(ctx context.Context, in <-chan wire.Frame) error {
	events := make(chan func(), eventBacklog)
	stop := make(chan struct{})
	defer close(stop)
	defer s.shutdown()

	s.ctx = ctx
	s.post = func(fn func()) {
		select {
		case events <- fn:
		case <-stop:
		}
	}

	cycle := time.NewTicker(s.cycle)
	defer cycle.Stop()
	info := time.NewTicker(s.infoInterval)
	defer info.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				return ErrLinkClosed
			}
			if err := s.HandleFrame(f); err != nil {
				return err
			}
		case fn := <-events:
			fn()
			if s.fatal != nil {
				return s.fatal
			}
		case <-cycle.C:
			if err := s.Tick(); err != nil {
				return err
			}
		case <-info.C:
			done, err := s.Report()
			if err != nil {
				return err
			}
			if done {
				s.log.Info("crawl complete", "nodes", s.dir.Len(), "visited", s.dir.Visited())
				return nil
			}
		}
	}
}

// Tick releases the next queued query.
func (s *Session) Tick() error {
	if s.fatal != nil {
		return s.fatal
	}
	if _, err := s.sched.Tick(s.dispatch); err != nil {
		s.fail(err)
	}
	return s.fatal
}

// Report writes a progress record and reports whether the crawl is
// complete: nothing queued and nothing outstanding.
func (s *Session) Report() (bool, error) {
	if s.fatal != nil {
		return false, s.fatal
	}

	queued, outstanding := s.sched.Len(), s.corr.Len()
	if err := s.emit.Info(queued, outstanding, s.id); err != nil {
		s.fail(err)
		return false, err
	}
	s.log.Info("crawl progress",
		"queued", queued,
		"outstanding", outstanding,
		"nodes", s.dir.Len(),
		"visited", s.dir.Visited())
	return queued == 0 && outstanding == 0, nil
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Nodes:       s.dir.Len(),
		Visited:     s.dir.Visited(),
		Queued:      s.sched.Len(),
		Outstanding: s.corr.Len(),
		Links:       s.emit.Count(graph.KindLink),
		Horizons:    s.emit.Count(graph.KindHorizon),
		Failures:    s.emit.Count(graph.KindFailure),
	}
}

// fail records the first error that stops the session.
func (s *Session) fail(err error) {
	if err != nil && s.fatal == nil {
		s.fatal = err
	}
}

// shutdown stops every retry timer still armed.
func (s *Session) shutdown() {
	for _, q := range s.corr.pending {
		q.settle()
	}
	s.post = func(func()) {}
}

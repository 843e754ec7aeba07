package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/artyom/imgmatch/internal/config"
	"github.com/artyom/imgmatch/internal/fingerprint"
	"github.com/artyom/imgmatch/internal/imageload"
	"github.com/artyom/imgmatch/internal/logging"
	"github.com/artyom/imgmatch/internal/orb"
	"github.com/artyom/imgmatch/internal/ranking"
	"github.com/artyom/imgmatch/internal/walk"
)

// ErrSessionUsed is returned by Run on a session that already ran.
var ErrSessionUsed = errors.New("scan session already used")

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithProgress registers a callback invoked after every file. Calls are
// serialized but may come from any worker goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(s *Session) { s.onProgress = fn }
}

// WithHasher overrides the hasher selected by the configuration.
func WithHasher(h fingerprint.Hasher) Option {
	return func(s *Session) { s.hasher = h }
}

// WithExtractor overrides the descriptor extractor selected by the
// configuration.
func WithExtractor(e orb.Extractor) Option {
	return func(s *Session) { s.extractor = e }
}

// WithSkipDirs names directories the walk never enters, such as the
// quarantine folder under the scanned root.
func WithSkipDirs(names ...string) Option {
	return func(s *Session) { s.skipDirs = append(s.skipDirs, names...) }
}

// Session is a single scan. Create one per scan; a finished session cannot
// be restarted.
type Session struct {
	id         string
	cfg        config.Scan
	log        zerolog.Logger
	onProgress func(Progress)
	hasher     fingerprint.Hasher
	extractor  orb.Extractor
	skipDirs   []string

	started   atomic.Bool
	state     atomic.Int32
	cancelled atomic.Bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	processed atomic.Int64
	matched   atomic.Int64
	pruned    atomic.Int64
	failed    atomic.Int64
	notifyMu  sync.Mutex

	mu      sync.Mutex
	results []Result

	queryHash fingerprint.Fingerprint
	querySet  orb.DescriptorSet
}

// NewSession returns an idle session for cfg.
func NewSession(cfg config.Scan, opts ...Option) *Session {
	s := &Session{
		id:  uuid.NewString(),
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str(logging.FieldSession, s.id).Logger()
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Progress returns a snapshot of the per-file counters.
func (s *Session) Progress() Progress {
	return Progress{
		Processed: s.processed.Load(),
		Matched:   s.matched.Load(),
		Pruned:    s.pruned.Load(),
		Failed:    s.failed.Load(),
	}
}

// QueryFingerprint returns the query's fingerprint once Run has prepared it.
func (s *Session) QueryFingerprint() fingerprint.Fingerprint { return s.queryHash }

// Cancel requests cooperative cancellation. Files already past the prune
// stage finish; nothing new is scheduled. It is safe to call at any time,
// from any goroutine, and more than once.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Run scans root for files similar to the image at queryPath and returns them
// best first. Configuration and query problems are reported before any file
// is enumerated. A cancelled scan returns nil results and a nil error.
func (s *Session) Run(ctx context.Context, queryPath, root string) ([]Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrSessionUsed
	}
	if err := s.prepare(queryPath, root); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	if s.cancelled.Load() {
		cancel()
	}

	s.state.Store(int32(StateRunning))
	s.log.Info().
		Str("query", queryPath).
		Str("root", root).
		Str("fingerprint", s.queryHash.String()).
		Int("query_descriptors", s.querySet.Len()).
		Int("threshold", s.cfg.HashThreshold).
		Int("workers", s.cfg.Workers).
		Msg("scan started")

	err := s.pool(ctx, root)

	if s.cancelled.Load() || ctx.Err() != nil {
		s.state.Store(int32(StateCancelled))
		s.log.Info().Int64("processed", s.processed.Load()).Msg("scan cancelled")
		if s.cfg.PartialOnCancel {
			return s.sorted(), nil
		}
		s.discard()
		return nil, nil
	}
	if err != nil {
		s.state.Store(int32(StateFailed))
		s.discard()
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	out := s.sorted()
	s.state.Store(int32(StateCompleted))
	p := s.Progress()
	s.log.Info().
		Int64("processed", p.Processed).
		Int64("matched", p.Matched).
		Int64("pruned", p.Pruned).
		Int64("failed", p.Failed).
		Msg("scan completed")
	return out, nil
}

// prepare validates everything that must hold before enumeration starts.
func (s *Session) prepare(queryPath, root string) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.hasher == nil {
		h, err := fingerprint.New(s.cfg.HashAlgorithm)
		if err != nil {
			return &config.Error{Key: "scan.hash_algorithm", Reason: err.Error()}
		}
		s.hasher = h
	}
	if s.extractor == nil {
		e, err := orb.New(orb.Options{MaxFeatures: s.cfg.MaxFeatures, Backend: s.cfg.DescriptorBackend})
		if err != nil {
			return &config.Error{Key: "scan.descriptor_backend", Reason: err.Error()}
		}
		s.extractor = e
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan root %s: %w", root, walk.ErrNotDir)
	}

	query, err := imageload.Load(queryPath)
	if err != nil {
		return err
	}
	s.queryHash, err = s.hasher.Hash(query)
	if err != nil {
		return &imageload.LoadError{Path: queryPath, Err: err}
	}
	s.querySet = s.extractor.Extract(query.Gray)
	if s.querySet.Len() == 0 {
		s.log.Warn().Str("query", queryPath).Msg("query image has no keypoints; match ratios will be zero")
	}
	return nil
}

// pool feeds paths from one walker goroutine to cfg.Workers workers.
func (s *Session) pool(ctx context.Context, root string) error {
	group, gctx := errgroup.WithContext(ctx)
	paths := make(chan string)

	w := walk.New(walk.Options{
		Extensions:     s.cfg.Extensions,
		FollowSymlinks: s.cfg.FollowSymlinks,
		SkipDirs:       s.skipDirs,
		Logger:         s.log,
	})
	group.Go(func() error {
		defer close(paths)
		return w.Walk(gctx, root, func(p string) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case paths <- p:
			}
			return nil
		})
	})

	for i := 0; i < s.cfg.Workers; i++ {
		group.Go(func() error {
			for p := range paths {
				if s.stopping(gctx) {
					return nil
				}
				s.processFile(gctx, p)
			}
			return nil
		})
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) stopping(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomePruned
	outcomeMatched
	outcomeAbandoned
)

// processFile runs both stages for one file. Every failure stays inside this
// call: the file contributes nothing and the scan goes on.
func (s *Session) processFile(ctx context.Context, path string) {
	o := outcomeFailed
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Str(logging.FieldPath, path).Interface("panic", r).Msg("recovered while processing file")
			o = outcomeFailed
		}
		s.record(o)
	}()
	o = s.evaluate(ctx, path)
}

func (s *Session) evaluate(ctx context.Context, path string) outcome {
	img, err := imageload.Load(path)
	if err != nil {
		s.log.Debug().Err(err).Str(logging.FieldPath, path).Msg("skipping unreadable file")
		return outcomeFailed
	}
	fp, err := s.hasher.Hash(img)
	if err != nil {
		s.log.Debug().Err(err).Str(logging.FieldPath, path).Msg("skipping unhashable file")
		return outcomeFailed
	}
	distance := fingerprint.Hamming(s.queryHash, fp)
	if distance > s.cfg.HashThreshold {
		return outcomePruned
	}
	if s.stopping(ctx) {
		return outcomeAbandoned
	}

	stats := orb.Match(s.querySet, s.extractor.Extract(img.Gray))
	res := Result{
		Path:          path,
		Filename:      norm.NFC.String(filepath.Base(path)),
		Fingerprint:   fp,
		Hamming:       distance,
		Match:         stats,
		Score:         ranking.Combine(distance, stats.Ratio, fingerprint.Bits),
		BelowMinRatio: stats.Ratio < s.cfg.MinRatio,
	}
	s.mu.Lock()
	s.results = append(s.results, res)
	s.mu.Unlock()

	s.log.Debug().
		Str(logging.FieldPath, path).
		Int("hamming", distance).
		Int("good", stats.Good).
		Int("total", stats.Total).
		Float64("score", res.Score).
		Msg("candidate verified")
	return outcomeMatched
}

func (s *Session) record(o outcome) {
	if o == outcomeAbandoned {
		return
	}
	switch o {
	case outcomeMatched:
		s.matched.Add(1)
	case outcomePruned:
		s.pruned.Add(1)
	default:
		s.failed.Add(1)
	}
	s.processed.Add(1)
	if s.onProgress == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onProgress(s.Progress())
}

func (s *Session) sorted() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	ranking.Sort(out, Result.Key)
	return out
}

func (s *Session) discard() {
	s.mu.Lock()
	s.results = nil
	s.mu.Unlock()
}

// Package reportsink buffers resolved transaction records and writes them in batches.
package reportsink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultFlushSize     = 500
	defaultFlushInterval = 5 * time.Second
	defaultFlushRate     = 10
)

// ErrStopped is returned by Add once the sink has been stopped.
var ErrStopped = errors.New("report sink stopped")

type Repository interface {
	InsertTransactionReports(ctx context.Context, records []model.TransactionRecord) error
}

// Options tune batching. Zero fields take defaults.
type Options struct {
	FlushSize     int
	FlushInterval time.Duration
	// FlushRate caps repository writes per second.
	FlushRate int
}

// Sink flushes records by size or interval, whichever comes first.
type Sink struct {
	repo          Repository
	logger        *zap.Logger
	records       chan model.TransactionRecord
	flushSize     int
	flushInterval time.Duration
	rl            ratelimit.Limiter

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once

	// done is closed once the loop stops consuming; closed is set under mu before the final drain.
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func New(repo Repository, opts Options, logger *zap.Logger) *Sink {
	if opts.FlushSize <= 0 {
		opts.FlushSize = defaultFlushSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.FlushRate <= 0 {
		opts.FlushRate = defaultFlushRate
	}
	return &Sink{
		repo:          repo,
		logger:        logger.Named("reportSink"),
		records:       make(chan model.TransactionRecord, opts.FlushSize*2),
		flushSize:     opts.FlushSize,
		flushInterval: opts.FlushInterval,
		rl:            ratelimit.New(opts.FlushRate),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the background flushing loop.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop flushes pending records and waits for the loop to exit. It is safe to call twice.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

// Add queues rec, blocking while the buffer is full. It returns ErrStopped once the sink was
// stopped or its start context ended.
func (s *Sink) Add(ctx context.Context, rec model.TransactionRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStopped
	}
	select {
	case <-s.stop:
		return ErrStopped
	case <-s.done:
		return ErrStopped
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return ErrStopped
	case <-s.done:
		return ErrStopped
	case s.records <- rec:
		return nil
	}
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	buf := make([]model.TransactionRecord, 0, s.flushSize)

	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}

		s.rl.Take()
		if err := s.repo.InsertTransactionReports(ctx, buf); err != nil {
			s.logger.Error("reports not flushed", zap.Int("size", len(buf)), zap.Error(err))
		} else {
			s.logger.Debug("reports flushed", zap.Int("size", len(buf)))
		}
		buf = make([]model.TransactionRecord, 0, s.flushSize)
	}

	// drain picks up records queued before shutdown and writes them with a detached context.
	drain := func() {
		for {
			select {
			case rec := <-s.records:
				buf = append(buf, rec)
			default:
				flush(context.WithoutCancel(ctx))
				return
			}
		}
	}

	// shutdown releases blocked Add calls, refuses new ones, then drains what was accepted.
	shutdown := func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		drain()
	}

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return

		case <-s.stop:
			shutdown()
			return

		case rec := <-s.records:
			buf = append(buf, rec)
			if len(buf) >= s.flushSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PoolConfig tunes a worker Pool.  Zero values fall back to defaults.
type PoolConfig struct {
	Workers      int
	MaxAttempts  int
	PollInterval time.Duration
	// RequeueInterval is how often expired in-flight tasks are recovered.
	RequeueInterval time.Duration
	// BaseBackoff is the delay before the first retry; it doubles on
	// every further attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.RequeueInterval <= 0 {
		c.RequeueInterval = 5 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	return c
}

// Pool runs tasks from a Queue on a fixed number of goroutines.
type Pool struct {
	queue    Queue
	cfg      PoolConfig
	handlers map[Kind]Handler
	log      zerolog.Logger
	now      func() time.Time
}

func NewPool(queue Queue, cfg PoolConfig, log zerolog.Logger) *Pool {
	return &Pool{
		queue:    queue,
		cfg:      cfg.withDefaults(),
		handlers: make(map[Kind]Handler),
		log:      log,
		now:      time.Now,
	}
}

// Register binds h to kind.  It must be called before Run.
func (p *Pool) Register(kind Kind, h Handler) {
	p.handlers[kind] = h
}

// Run blocks until ctx is cancelled and all workers have returned.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			p.work(ctx, worker)
			return nil
		})
	}
	g.Go(func() error {
		p.requeueLoop(ctx)
		return nil
	})
	p.log.Info().Int("workers", p.cfg.Workers).Msg("job pool started")
	err := g.Wait()
	p.log.Info().Msg("job pool stopped")
	return err
}

func (p *Pool) work(ctx context.Context, worker int) {
	log := p.log.With().Int("worker", worker).Logger()
	for ctx.Err() == nil {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, ErrNoTask) && ctx.Err() == nil {
				log.Error().Err(err).Msg("dequeue failed")
			}
			wait(ctx, p.cfg.PollInterval)
			continue
		}
		p.Process(ctx, task)
	}
}

func (p *Pool) requeueLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.RequeueInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.queue.Requeue(ctx)
			if err != nil {
				p.log.Error().Err(err).Msg("requeue expired tasks")
				continue
			}
			if n > 0 {
				p.log.Warn().Int("tasks", n).Msg("recovered tasks past visibility timeout")
			}
		}
	}
}

// Process runs one dequeued task and settles it: ack on success,
// re-enqueue on a deferral or a retryable failure, bury once attempts are
// exhausted.  Settling outlives ctx so a shutdown does not lose the task.
func (p *Pool) Process(ctx context.Context, t Task) {
	log := p.log.With().Str("task", t.String()).Str("task_id", t.ID.String()).Logger()
	settle := context.WithoutCancel(ctx)

	h, ok := p.handlers[t.Kind]
	if !ok {
		log.Error().Msg("no handler for task kind, burying")
		if err := p.queue.Bury(settle, t, "no handler"); err != nil {
			log.Error().Err(err).Msg("bury task")
		}
		return
	}

	err := p.run(ctx, h, t)
	var deferred *DeferError
	switch {
	case err == nil:
		if err := p.queue.Ack(settle, t); err != nil {
			log.Error().Err(err).Msg("ack task")
		}
		return
	case errors.As(err, &deferred):
		t.NotBefore = deferred.At
		log.Debug().Time("at", deferred.At).Msg("task deferred")
		if err := p.queue.Enqueue(settle, t); err != nil {
			log.Error().Err(err).Msg("re-enqueue deferred task")
		}
		return
	}

	t.Attempt++
	t.LastError = err.Error()
	if isPermanent(err) || t.Attempt >= p.cfg.MaxAttempts {
		log.Error().Err(err).Int("attempt", t.Attempt).Msg("task failed permanently, burying")
		if err := p.queue.Bury(settle, t, t.LastError); err != nil {
			log.Error().Err(err).Msg("bury task")
		}
		return
	}
	delay := p.backoff(t.Attempt)
	t.NotBefore = p.now().Add(delay)
	log.Warn().Err(err).Int("attempt", t.Attempt).Dur("retry_in", delay).Msg("task failed, retrying")
	if err := p.queue.Enqueue(settle, t); err != nil {
		log.Error().Err(err).Msg("re-enqueue failed task")
	}
}

func (p *Pool) run(ctx context.Context, h Handler, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, t)
}

func (p *Pool) backoff(attempt int) time.Duration {
	d := p.cfg.BaseBackoff
	for i := 1; i < attempt && d < p.cfg.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.cfg.MaxBackoff)
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

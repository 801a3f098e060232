package reconcile

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DispatcherConfig sizes the worker pool that runs remote calls.
type DispatcherConfig struct {
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Workers: 8, Buffer: 256, HandoffTimeout: 15 * time.Millisecond}
}

type job func()

// Dispatcher runs jobs on a bounded pool. Submitting never blocks the caller
// for longer than the handoff timeout: when the pool stays saturated the
// job gets its own goroutine.
type Dispatcher struct {
	jobs    chan job
	handoff time.Duration
	log     *log.Logger
	wg      sync.WaitGroup
	spill   sync.WaitGroup
	once    sync.Once
}

func NewDispatcher(cfg DispatcherConfig, logger *log.Logger) *Dispatcher {
	if logger == nil {
		panic("Logger is not initialized")
	}
	def := DefaultDispatcherConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.HandoffTimeout < 0 {
		cfg.HandoffTimeout = 0
	}

	d := &Dispatcher{
		jobs:    make(chan job, cfg.Buffer),
		handoff: cfg.HandoffTimeout,
		log:     logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("sync dispatcher started, workers: %d, buffer: %d, handoff: %v", cfg.Workers, cfg.Buffer, cfg.HandoffTimeout)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(id, j)
	}
}

func (d *Dispatcher) run(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("sync job panicked, worker: %d, err: %v", id, r)
		}
	}()
	j()
}

// Go schedules fn. It reports whether a pool worker took the job; false
// means the pool was saturated or closed and fn runs on its own goroutine.
func (d *Dispatcher) Go(fn func()) bool {
	if d.tryEnqueue(fn) {
		return true
	}
	d.log.Debug("sync dispatcher saturated, spilling job")
	d.spill.Add(1)
	go func() {
		defer d.spill.Done()
		d.run(-1, fn)
	}()
	return false
}

func (d *Dispatcher) tryEnqueue(j job) bool {
	if ok, closed := trySendNonBlocking(d.jobs, j); closed {
		return false
	} else if ok {
		return true
	}

	if d.handoff <= 0 {
		return false
	}

	timer := time.NewTimer(d.handoff)
	defer timer.Stop()

	ok, closed := sendWithTimer(d.jobs, j, timer.C)
	if closed {
		return false
	}
	return ok
}

// Close stops accepting pooled work and waits for queued and spilled jobs.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
	d.spill.Wait()
}

func trySendNonBlocking(ch chan job, j job) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- j:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan job, j job, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- j:
		return true, false
	case <-timer:
		return false, false
	}
}

package learning

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/listing-ranker/internal/storage"
)

// retryInterval is how often a failed write is retried while idle.
const retryInterval = 5 * time.Second

// persister writes learning snapshots in the background.
//
// Submit only records the newest snapshot and signals the loop, so callers
// never wait on storage. Intermediate generations may be skipped, but a
// generation is never written after a newer one.
type persister struct {
	store   storage.Storage
	scope   string
	log     zerolog.Logger
	latest  atomic.Pointer[State]
	pending chan struct{}

	// writeMu orders writes from the loop and from Flush.
	writeMu sync.Mutex
	written uint64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	stopErr  error
}

func newPersister(store storage.Storage, scope string, log zerolog.Logger) *persister {
	p := &persister{
		store:    store,
		scope:    scope,
		log:      log,
		pending:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Submit schedules s for persistence (non-blocking).
// Callers must submit in generation order.
func (p *persister) Submit(s *State) {
	p.latest.Store(s)

	select {
	case p.pending <- struct{}{}:
	default:
		// A write is already scheduled and will pick up s.
	}
}

// run is the background write loop.
func (p *persister) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.pending:
			p.Flush()

		case <-ticker.C:
			// Retry after an earlier failure
			p.Flush()

		case <-p.stopChan:
			p.stopErr = p.Flush()
			return
		}
	}
}

// Flush writes the newest snapshot unless it is already persisted.
func (p *persister) Flush() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	s := p.latest.Load()
	if s == nil || s.generation <= p.written {
		return nil
	}

	if err := writeState(p.store, p.scope, s); err != nil {
		p.log.Warn().Err(err).Uint64("generation", s.generation).Msg("failed to persist learning state")
		return err
	}
	p.written = s.generation
	return nil
}

// Reset deletes the persisted state once any in-flight write has finished
// and marks next as written, so no older generation is written afterwards.
// On failure next stays pending and the retry loop writes it in place of the
// old blob.
func (p *persister) Reset(next *State) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.latest.Store(next)
	if err := deleteState(p.store, p.scope); err != nil {
		p.log.Warn().Err(err).Msg("failed to delete learning state")
		return err
	}
	p.written = next.generation
	return nil
}

// Stop performs a final flush and waits for the loop to exit.
func (p *persister) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()
	})
	return p.stopErr
}

package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/khanglvm/listing-ranker/internal/storage"
)

// recorderBuffer is how many search records may wait for storage.
const recorderBuffer = 256

type recordRequest struct {
	record storage.SearchRecord
	done   chan struct{}
}

// searchRecorder appends search history in the background so ranking
// responses never wait on the store. Records are dropped when the buffer
// is full.
type searchRecorder struct {
	store    storage.Storage
	log      zerolog.Logger
	requests chan recordRequest

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newSearchRecorder(store storage.Storage, log zerolog.Logger) *searchRecorder {
	r := &searchRecorder{
		store:    store,
		log:      log,
		requests: make(chan recordRequest, recorderBuffer),
		stopChan: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Record queues a search record (non-blocking).
func (r *searchRecorder) Record(rec storage.SearchRecord) {
	select {
	case <-r.stopChan:
		return
	default:
	}

	select {
	case r.requests <- recordRequest{record: rec}:
	default:
		r.log.Warn().Str("search_id", rec.SearchID).Msg("search history buffer full, dropping record")
	}
}

// Flush blocks until every record queued before the call is written.
func (r *searchRecorder) Flush() {
	done := make(chan struct{})
	select {
	case r.requests <- recordRequest{done: done}:
	case <-r.stopChan:
		return
	}

	select {
	case <-done:
	case <-r.stopChan:
	}
}

func (r *searchRecorder) run() {
	defer r.wg.Done()

	for {
		select {
		case req := <-r.requests:
			r.handle(req)

		case <-r.stopChan:
			// Drain what was queued before Stop
			for {
				select {
				case req := <-r.requests:
					r.handle(req)
				default:
					return
				}
			}
		}
	}
}

func (r *searchRecorder) handle(req recordRequest) {
	if req.done != nil {
		close(req.done)
		return
	}
	if err := r.store.RecordSearch(req.record); err != nil {
		r.log.Warn().Err(err).Msg("failed to record search")
	}
}

// Stop writes the queued records and waits for the loop to exit.
func (r *searchRecorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
	})
}

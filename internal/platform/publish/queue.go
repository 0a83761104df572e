package publish

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job is one queued publish request.
type Job struct {
	ID      string
	Message string
}

// Queue runs fire-and-forget publishes on a single background worker.
// Outcomes are journaled and logged rather than swallowed, so a delete's
// publish can fail loudly without blocking the delete itself. A single
// worker also keeps remote pushes serialized.
type Queue struct {
	pub     Publisher
	journal *Journal
	log     zerolog.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts the worker. The journal may be nil (outcomes are then
// only logged).
func NewQueue(pub Publisher, journal *Journal, log zerolog.Logger) *Queue {
	q := &Queue{
		pub:     pub,
		journal: journal,
		log:     log,
		jobs:    make(chan Job, 16),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue submits a publish job and returns its id immediately. When the
// queue is full or already closed the job is dropped with a logged
// warning; the next publish stages everything anyway, so no local change
// is lost.
func (q *Queue) Enqueue(message string) string {
	job := Job{ID: uuid.NewString(), Message: message}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn().Str("job_id", job.ID).Str("message", message).Msg("publish queue closed, dropping job")
		return job.ID
	}
	select {
	case q.jobs <- job:
	default:
		q.log.Warn().Str("job_id", job.ID).Str("message", message).Msg("publish queue full, dropping job")
	}
	return job.ID
}

func (q *Queue) run() {
	defer q.wg.Done()
	for job := range q.jobs {
		res := q.pub.Publish(context.Background(), job.Message)
		if q.journal != nil {
			if _, err := q.journal.Record(context.Background(), job.Message, res); err != nil {
				q.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to journal publish outcome")
			}
		}
		evt := q.log.Info()
		if !res.OK {
			evt = q.log.Warn()
		}
		evt.Str("job_id", job.ID).
			Str("message", job.Message).
			Bool("ok", res.OK).
			Str("detail", res.Detail).
			Msg("publish finished")
	}
}

// Close drains queued jobs and stops the worker. Jobs enqueued after Close
// are dropped rather than sent on the closed channel.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

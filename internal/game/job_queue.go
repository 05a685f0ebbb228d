package game

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"

	"github.com/qninhdt/ai-adventure/internal/scene"
)

// SceneJob asks for the background of a described scene
type SceneJob struct {
	AdventureID string
	Description string
}

// SceneResolver resolves a description into a cached or generated background
type SceneResolver interface {
	Resolve(ctx context.Context, adventureID, description string) (*scene.Resolution, error)
}

// SceneQueue resolves scene backgrounds off the turn's critical path
type SceneQueue struct {
	resolver SceneResolver
	workers  int
	timeout  time.Duration

	mu         sync.Mutex
	cond       *sync.Cond
	pending    *list.List // *SceneJob
	inFlight   map[string]bool
	closed     bool
	onResolved func(SceneJob, *scene.Resolution)
	wg         sync.WaitGroup
}

// NewSceneQueue creates a new scene queue
func NewSceneQueue(resolver SceneResolver, workers int, timeout time.Duration) *SceneQueue {
	if workers <= 0 {
		workers = 2
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	q := &SceneQueue{
		resolver: resolver,
		workers:  workers,
		timeout:  timeout,
		pending:  list.New(),
		inFlight: make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// OnResolved registers a callback run after each successful resolution
func (q *SceneQueue) OnResolved(fn func(SceneJob, *scene.Resolution)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onResolved = fn
}

// Start launches the workers
func (q *SceneQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

// Enqueue adds a job. A job still waiting for the same adventure is replaced
// by the newer description. It returns false once the queue is closed.
func (q *SceneQueue) Enqueue(job SceneJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		queued := elem.Value.(*SceneJob)
		if queued.AdventureID == job.AdventureID {
			queued.Description = job.Description
			return true
		}
	}
	q.pending.PushBack(&job)
	q.cond.Signal()
	return true
}

// Count returns the number of pending jobs
func (q *SceneQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Close stops accepting jobs and waits for pending ones to finish
func (q *SceneQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

// next hands out the oldest job whose adventure has no job running,
// so jobs for one adventure finish in the order they were queued.
func (q *SceneQueue) next() (*SceneJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
			job := elem.Value.(*SceneJob)
			if !q.inFlight[job.AdventureID] {
				q.pending.Remove(elem)
				q.inFlight[job.AdventureID] = true
				return job, true
			}
		}
		if q.closed && q.pending.Len() == 0 {
			return nil, false
		}
		q.cond.Wait()
	}
}

func (q *SceneQueue) done(adventureID string) {
	q.mu.Lock()
	delete(q.inFlight, adventureID)
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *SceneQueue) work() {
	defer q.wg.Done()
	for {
		job, ok := q.next()
		if !ok {
			return
		}
		q.process(*job)
		q.done(job.AdventureID)
	}
}

func (q *SceneQueue) process(job SceneJob) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	res, err := q.resolver.Resolve(ctx, job.AdventureID, job.Description)
	if err != nil {
		log.Printf("scene: resolve failed adventure=%s: %v", job.AdventureID, err)
		return
	}
	log.Printf("scene: adventure=%s category=%s hit=%v usage=%d",
		job.AdventureID, res.Background.Category, res.Hit, res.Background.UsageCount)

	q.mu.Lock()
	fn := q.onResolved
	q.mu.Unlock()
	if fn != nil {
		fn(job, res)
	}
}

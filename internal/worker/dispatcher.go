package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrDispatcherBusy is returned when the number of queued and running turns hits the queue size.
	ErrDispatcherBusy   = errors.New("dispatcher queue is full")
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

const defaultQueueSize = 128

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
	// Locker, when set, also serializes keys across processes.
	Locker Locker
}

type keyQueue struct {
	jobs     []*Job
	enqueued bool // key is in the ready list
	running  bool // a job of this key is on a worker
}

// Dispatcher runs jobs on a bounded worker pool. Jobs sharing a key run one at a
// time in submission order; keys with pending work are served round-robin.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan *Job // interface for outer jobs get in the dispatcher
	locker   Locker

	limit   int64
	pending int64

	mu        sync.Mutex
	queues    map[string]*keyQueue
	ready     *list.List // round-robin queue of keys
	positions map[string]*list.Element

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Dispatcher{
		JobQueue:  make(chan *Job, queueSize),
		locker:    cfg.Locker,
		limit:     int64(queueSize),
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	d.pool = newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, d.handle)

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Do submits fn under key and waits for it. It fails fast with ErrDispatcherBusy
// instead of blocking when the queue is full.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if atomic.AddInt64(&d.pending, 1) > d.limit {
		atomic.AddInt64(&d.pending, -1)
		return ErrDispatcherBusy
	}
	job := newJob(ctx, key, fn)
	select {
	case d.JobQueue <- job:
	default:
		atomic.AddInt64(&d.pending, -1)
		return ErrDispatcherBusy
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		// the worker skips the job if it has not started yet
		return ctx.Err()
	case <-d.done:
		select {
		case err := <-job.result:
			return err
		default:
			return ErrDispatcherClosed
		}
	}
}

// Pending reports queued plus running jobs.
func (d *Dispatcher) Pending() int {
	return int(atomic.LoadInt64(&d.pending))
}

// Close stops accepting jobs and fails the queued ones. Running jobs finish normally.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		// unblocks a dispatch waiting for a free worker
		d.pool.close()
		close(d.quit)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		if d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			default:
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job *Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.running {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne takes the first ready key and hands its oldest job to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	// the key leaves the ready list until its job finishes
	q.enqueued = false
	q.running = true
	d.ready.Remove(elem)
	delete(d.positions, key)
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		d.complete(job, ErrDispatcherClosed)
		return true
	}
	debugLog("dispatch turn", "key", key, "pending", atomic.LoadInt64(&d.pending))
	workerChan <- job
	return true
}

// handle runs on a worker goroutine.
func (d *Dispatcher) handle(job *Job) {
	d.complete(job, job.execute(d.locker))
}

func (d *Dispatcher) complete(job *Job, err error) {
	job.result <- err
	atomic.AddInt64(&d.pending, -1)

	d.mu.Lock()
	if q := d.queues[job.Key]; q != nil {
		q.running = false
		if len(q.jobs) > 0 && !d.closed.Load() {
			q.enqueued = true
			d.positions[job.Key] = d.ready.PushBack(job.Key)
		} else if len(q.jobs) == 0 {
			delete(d.queues, job.Key)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// drain fails every job that never reached a worker.
func (d *Dispatcher) drain() {
	d.pool.close()

	d.mu.Lock()
	var stranded []*Job
	for key, q := range d.queues {
		stranded = append(stranded, q.jobs...)
		q.jobs = nil
		if !q.running {
			delete(d.queues, key)
		}
	}
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()

	for drained := false; !drained; {
		select {
		case job := <-d.JobQueue:
			stranded = append(stranded, job)
		default:
			drained = true
		}
	}
	for _, job := range stranded {
		job.result <- ErrDispatcherClosed
		atomic.AddInt64(&d.pending, -1)
	}
}

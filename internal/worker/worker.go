package worker

import (
	"context"
	"fmt"
)

type JobType int

const (
	Run JobType = iota
	Stop
)

// Job is one serialized unit of work bound to a key (a session id).
type Job struct {
	Type   JobType
	Key    string
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

func newJob(ctx context.Context, key string, fn func(context.Context) error) *Job {
	return &Job{
		Type:   Run,
		Key:    key,
		ctx:    ctx,
		fn:     fn,
		result: make(chan error, 1),
	}
}

// execute runs fn unless the caller already gave up, holding the cross-instance lock when one is set.
func (j *Job) execute(locker Locker) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Key, r)
		}
	}()
	if locker != nil {
		release, err := locker.Acquire(j.ctx, j.Key)
		if err != nil {
			return err
		}
		defer release()
	}
	return j.fn(j.ctx)
}

type Worker struct {
	pool       *jobChannelPool
	handler    func(*Job)
	jobChannel chan *Job
}

func NewWorker(pool *jobChannelPool, handler func(*Job)) *Worker {
	return &Worker{
		pool:       pool,
		handler:    handler,
		jobChannel: make(chan *Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			// register as idle, then wait for the dispatcher
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
			job := <-w.jobChannel
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.handler(job)
		}
	}()
}

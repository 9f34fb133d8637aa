package pipeline

import (
	"context"
	"sync"
)

// WorkerPool runs workerFunc on submitted tasks with a fixed number of
// goroutines. Workers exit when the context passed to Start is cancelled.
type WorkerPool struct {
	workers    int
	taskQueue  chan *task
	workerFunc func(context.Context, *task)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers int, workerFunc func(context.Context, *task)) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan *task, workers*2),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// Submit blocks until a worker slot is free or ctx is done.
func (wp *WorkerPool) Submit(ctx context.Context, t *task) bool {
	select {
	case wp.taskQueue <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Drain hands every task still buffered to fn. Call it after Wait.
func (wp *WorkerPool) Drain(fn func(*task)) {
	for {
		select {
		case t := <-wp.taskQueue:
			fn(t)
		default:
			return
		}
	}
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case t := <-wp.taskQueue:
			wp.workerFunc(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

package render

import "sync"

// Queue is a serial work queue. Tasks run one at a time on a single worker
// goroutine, in the order they were posted.
//
// Post never blocks on the worker: pending tasks are held in an unbounded
// ring buffer, so the update callback of the engine and the hardware refresh
// thread can post without waiting for a task that is itself waiting on them.
//
// A task that panics takes the process down with it. The queue provides
// ordering, not fault isolation.
type Queue struct {
	in      chan func()
	release chan struct{}
	done    chan struct{}

	closeOnce sync.Once
}

// NewQueue starts a queue worker.
func NewQueue() *Queue {
	q := &Queue{
		in:      make(chan func()),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Post appends task to the tail of the queue. Posting to a closed queue
// drops the task.
func (q *Queue) Post(task func()) {
	if task == nil {
		return
	}
	select {
	case q.in <- task:
	case <-q.release:
	}
}

// Sync posts a no-op and waits until it has run, so every task posted
// before Sync has completed when it returns. It returns false if the queue
// was closed first.
func (q *Queue) Sync() bool {
	ran := make(chan struct{})
	q.Post(func() { close(ran) })
	select {
	case <-ran:
		return true
	case <-q.done:
		return false
	}
}

// Close stops the worker once the task currently executing (if any) returns.
// Tasks still pending are discarded. Close is idempotent and waits for the
// worker to exit, so it must not be called from inside a task.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.release)
	})
	<-q.done
}

func (q *Queue) run() {
	// tasks feeds the executor; the ring buffer below absorbs bursts so that
	// Post only ever waits for this loop, never for a running task.
	tasks := make(chan func())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for task := range tasks {
			task()
		}
	}()
	defer func() {
		close(tasks)
		<-exited
		close(q.done)
	}()

	// initialSize must be a power of 2.
	const initialSize = 16
	i, j, buf, mask := 0, 0, make([]func(), initialSize), initialSize-1
	for {
		maybeOut := tasks
		var next func()
		if i == j {
			maybeOut = nil
		} else {
			next = buf[i&mask]
		}
		select {
		case maybeOut <- next:
			buf[i&mask] = nil
			i++
		case task := <-q.in:
			if i+len(buf) == j {
				b := make([]func(), 2*len(buf))
				n := copy(b, buf[j&mask:])
				copy(b[n:], buf[:j&mask])
				i, j = 0, len(buf)
				buf, mask = b, len(b)-1
			}
			buf[j&mask] = task
			j++
		case <-q.release:
			return
		}
	}
}

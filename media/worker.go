package media

import "sync"

// worker runs tasks one at a time in submission order.
type worker struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newWorker() *worker {
	w := &worker{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// execute queues a task. It returns false once the worker is shut down.
func (w *worker) execute(task func()) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.tasks = append(w.tasks, task)
	w.mu.Unlock()

	w.signal()
	return true
}

// call runs the task and waits for its result. It must not be used from a task.
func (w *worker) call(task func() error) error {
	errc := make(chan error, 1)
	if !w.execute(func() { errc <- task() }) {
		return ErrWorkerClosed
	}
	return <-errc
}

// shutdown queues last as the final task and stops accepting new ones.
func (w *worker) shutdown(last func()) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	if last != nil {
		w.tasks = append(w.tasks, last)
	}
	w.closed = true
	w.mu.Unlock()

	w.signal()
	return true
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.tasks) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		task := w.tasks[0]
		w.tasks[0] = nil
		w.tasks = w.tasks[1:]
		w.mu.Unlock()

		task()
	}
}

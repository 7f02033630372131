package dispatch

// Worker runs blocking callbacks off the dispatch path, one at a time.
// The dispatcher never executes host blocking code synchronously; it
// hands the rewound event to the worker and returns.
type Worker struct {
	tasks chan func()
	done  chan struct{}
}

// NewWorker starts the single worker goroutine.
func NewWorker() *Worker {
	w := &Worker{
		tasks: make(chan func(), 1),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for fn := range w.tasks {
		fn()
	}
}

// Submit enqueues one task. At most one blocking callback is ever
// outstanding, so this never blocks in practice.
func (w *Worker) Submit(fn func()) {
	w.tasks <- fn
}

// Close stops the worker after the current task finishes.
func (w *Worker) Close() {
	close(w.tasks)
	<-w.done
}

package port

import (
	"sync"
	"sync/atomic"

	"github.com/streamforge/physport/port/socket"
	"github.com/streamforge/physport/util"
)

// task is one unit of "deliver this payload for this connection" work.
// Immutable once enqueued, consumed exactly once.
type task struct {
	client socket.IClient
	data   []byte
}

// worker drains its queue strictly in enqueue order on one dedicated
// goroutine. The event loop is the only producer, so for a fixed connection
// the fan-out order equals the arrival order. Workers for different
// connections run in parallel.
type worker struct {
	id    int
	port  *physicalPort
	queue *util.MPSC[task]

	started atomic.Bool
	wg      sync.WaitGroup
}

func newWorker(id int, p *physicalPort) *worker {
	return &worker{
		id:    id,
		port:  p,
		queue: util.NewMPSC[task](),
	}
}

// Start launches the processing goroutine. Start is called exactly once,
// right after construction.
func (w *worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}

	w.wg.Add(1)
	go w.run()
}

// AddTask enqueues a payload for the given connection. Never blocks the
// caller beyond the push itself.
func (w *worker) AddTask(client socket.IClient, data []byte) {
	if w.queue.Push(&task{client: client, data: data}) {
		w.port.metrics.tasksEnqueued.Inc()
	} else {
		// the worker is already stopping, the consuming observers are
		// being torn down as well
		w.port.metrics.tasksDropped.Inc()
	}
}

// Stop signals the goroutine to exit after its current task and joins it.
// Undrained tasks are discarded.
func (w *worker) Stop() {
	w.queue.Close()
	w.wg.Wait()
}

func (w *worker) run() {
	defer w.wg.Done()

	for t := range w.queue.Recv() {
		w.port.notifyData(t.client, t.client.RemoteAddr(), t.data)
		w.port.metrics.tasksProcessed.Inc()
	}
}

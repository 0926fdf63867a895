package port

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
)

// fakeClient is a connection handle detached from any real socket
type fakeClient struct {
	id uint64
}

func (c *fakeClient) ID() uint64           { return c.id }
func (c *fakeClient) RemoteAddr() net.Addr { return nil }
func (c *fakeClient) LocalAddr() net.Addr  { return nil }
func (c *fakeClient) Send(_ []byte) error  { return nil }
func (c *fakeClient) Close() error         { return nil }
func (c *fakeClient) String() string       { return fmt.Sprintf("#%d", c.id) }

// funcObserver adapts a function to the data reaction
type funcObserver struct {
	onData func(client socket.IClient, data []byte)
}

func (o *funcObserver) OnConnected(_ socket.IClient)                                 {}
func (o *funcObserver) OnDisconnected(_ socket.IClient, _ DisconnectReason, _ error) {}
func (o *funcObserver) OnDataReceived(client socket.IClient, _ net.Addr, data []byte) {
	o.onData(client, data)
}

// newTestPort builds a bare port with metrics and one observer attached
func newTestPort(t *testing.T, onData func(client socket.IClient, data []byte)) *physicalPort {
	t.Helper()

	p := &physicalPort{conf: common.DefaultPortConfig()}
	p.metrics = newPortMetrics("test", t.Name())
	p.AddObserver(&funcObserver{onData: onData})
	return p
}

// TestWorkerOrdering verifies strict FIFO processing of one worker
func TestWorkerOrdering(t *testing.T) {
	const count = 5000

	received := make(chan byte, count)
	p := newTestPort(t, func(_ socket.IClient, data []byte) {
		received <- data[0]
	})

	w := newWorker(0, p)
	w.Start()
	defer w.Stop()

	client := &fakeClient{id: 7}
	for i := 0; i < count; i++ {
		w.AddTask(client, []byte{byte(i)})
	}

	for i := 0; i < count; i++ {
		select {
		case b := <-received:
			if b != byte(i) {
				t.Fatalf("Out of order delivery at %d: got %d", i, b)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout waiting for task %d", i)
		}
	}
}

// TestWorkerIsolation verifies a slow worker never blocks another worker
func TestWorkerIsolation(t *testing.T) {
	const fastCount = 100

	slowGate := make(chan struct{})
	fastDone := make(chan struct{}, fastCount)

	p := newTestPort(t, func(client socket.IClient, _ []byte) {
		if client.ID() == 1 {
			<-slowGate // worker 1 is stuck from its first task on
			return
		}
		fastDone <- struct{}{}
	})

	slow := newWorker(1, p)
	fast := newWorker(0, p)
	slow.Start()
	fast.Start()
	defer func() {
		close(slowGate)
		slow.Stop()
		fast.Stop()
	}()

	// one task jams the slow worker, then both get load
	slow.AddTask(&fakeClient{id: 1}, []byte("x"))
	for i := 0; i < fastCount; i++ {
		slow.AddTask(&fakeClient{id: 1}, []byte("x"))
		fast.AddTask(&fakeClient{id: 2}, []byte("y"))
	}

	// every fast task must complete while the slow worker is still stuck
	for i := 0; i < fastCount; i++ {
		select {
		case <-fastDone:
		case <-time.After(2 * time.Second):
			t.Fatalf("Fast worker blocked behind slow worker, %d of %d tasks done", i, fastCount)
		}
	}
}

// TestWorkerStopDiscardsPending verifies Stop never drains the backlog
func TestWorkerStopDiscardsPending(t *testing.T) {
	const count = 1000

	var mu sync.Mutex
	processed := 0

	p := newTestPort(t, func(_ socket.IClient, _ []byte) {
		time.Sleep(100 * time.Microsecond)
		mu.Lock()
		processed++
		mu.Unlock()
	})

	w := newWorker(0, p)
	w.Start()

	client := &fakeClient{id: 3}
	for i := 0; i < count; i++ {
		w.AddTask(client, []byte("x"))
	}

	// wait until the worker is mid-drain, then stop it
	for {
		mu.Lock()
		started := processed > 0
		mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	w.Stop()

	mu.Lock()
	got := processed
	mu.Unlock()
	if got >= count {
		t.Errorf("Expected pending tasks to be discarded, %d of %d processed", got, count)
	}
}

// TestStableWorkerMapping verifies the port's connection to worker
// assignment is a pure function of the connection id
func TestStableWorkerMapping(t *testing.T) {
	const poolSize = 16
	const connections = 100 // more connections than workers

	p := newTestPort(t, func(_ socket.IClient, _ []byte) {})
	p.workers = make([]*worker, poolSize)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	defer p.teardownWorkers()

	for id := uint64(1); id <= connections; id++ {
		first := p.workerFor(id)
		if first == nil {
			t.Fatalf("No worker assigned for connection %d", id)
		}
		if first.id < 0 || first.id >= poolSize {
			t.Fatalf("Worker for connection %d out of range: %d", id, first.id)
		}
		for i := 0; i < 10; i++ {
			if got := p.workerFor(id); got != first {
				t.Fatalf("Mapping for connection %d changed: worker %d != %d", id, got.id, first.id)
			}
		}
	}

	// a torn down pool assigns nothing
	p.teardownWorkers()
	if p.workerFor(1) != nil {
		t.Error("Expected no worker after the pool is torn down")
	}
}

// TestPerConnectionOrderingOverTCP verifies end to end that the byte stream
// of one connection is delivered to observers in arrival order
func TestPerConnectionOrderingOverTCP(t *testing.T) {
	conf := common.DefaultPortConfig()
	conf.DispatchTimeout = 50 * time.Millisecond
	p := NewPort(conf)
	defer p.Close()

	var mu sync.Mutex
	var received []byte
	done := make(chan struct{})

	const total = 20000

	p.AddObserver(&funcObserver{onData: func(_ socket.IClient, data []byte) {
		mu.Lock()
		received = append(received, data...)
		if len(received) >= total {
			select {
			case <-done:
			default:
				close(done)
			}
		}
		mu.Unlock()
	}})

	if !p.Create(SocketTCP, "127.0.0.1:0", 0, 0) {
		t.Fatal("Create failed")
	}

	conn, err := net.Dial("tcp", p.LocalAddr().String())
	if err != nil {
		t.Fatalf("Failed to dial port: %v", err)
	}
	defer conn.Close()

	sent := make([]byte, total)
	for i := range sent {
		sent[i] = byte(i % 251)
	}

	// many small writes so the stream arrives as many data events
	for off := 0; off < total; off += 100 {
		if _, err := conn.Write(sent[off : off+100]); err != nil {
			t.Fatalf("Failed to write at offset %d: %v", off, err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		mu.Lock()
		got := len(received)
		mu.Unlock()
		t.Fatalf("Timeout: received %d of %d bytes", got, total)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < total; i++ {
		if received[i] != sent[i] {
			t.Fatalf("Byte stream reordered at offset %d: got %d, want %d", i, received[i], sent[i])
		}
	}
}

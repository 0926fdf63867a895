package port

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
	"github.com/streamforge/physport/port/socket/srt"
	"github.com/streamforge/physport/port/socket/tcp"
	"github.com/streamforge/physport/port/socket/udp"
)

var Logger = logger.GetLogger("port")

// physicalPort implements IPort. One instance owns one endpoint.
type physicalPort struct {
	conf common.PortConfig

	socketType SocketType
	endpoint   string

	state      atomic.Int32
	needToStop atomic.Bool

	serverSocket   socket.IServerSocket
	datagramSocket socket.IDatagramSocket

	// guards the worker slice: the event loop selects workers under the
	// read lock, Create/Close mutate under the write lock
	workerMu sync.RWMutex
	workers  []*worker

	// guards the observer list against concurrent fan-out
	observerMu sync.RWMutex
	observers  []IObserver

	loop sync.WaitGroup

	metrics *portMetrics
}

// NewPort creates a closed port with the given configuration
func NewPort(conf common.PortConfig) IPort {
	conf.Validate()
	return &physicalPort{conf: conf}
}

// NewDefaultPort creates a closed port with the reference configuration
func NewDefaultPort() IPort {
	return NewPort(common.DefaultPortConfig())
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (p *physicalPort) Create(socketType SocketType, endpoint string, sendBufferSize, recvBufferSize int) bool {
	if p.serverSocket != nil || p.datagramSocket != nil {
		Logger.Errorf("port already has an active socket (%s on %s)", p.socketType, p.endpoint)
		return false
	}

	Logger.Debugf("Trying to start server...")

	p.state.Store(int32(StateStarting))

	conf := p.conf
	if sendBufferSize > 0 {
		conf.Socket.SendBufferSize = sendBufferSize
	}
	if recvBufferSize > 0 {
		conf.Socket.RecvBufferSize = recvBufferSize
	}

	// the loops record into the metrics, they must exist before the first event
	p.metrics = newPortMetrics(socketType.String(), endpoint)

	ok := false
	switch socketType {
	case SocketTCP, SocketSRT:
		ok = p.createServerSocket(socketType, endpoint, conf)
	case SocketUDP:
		ok = p.createDatagramSocket(endpoint, conf)
	case SocketUnknown:
	}

	if !ok {
		p.state.Store(int32(StateClosed))
		return false
	}

	p.socketType = socketType
	p.endpoint = endpoint

	return true
}

// createServerSocket starts a stream port: the worker pool first, so no
// connection can ever be assigned to a worker that does not exist yet, then
// the socket, then the event loop.
func (p *physicalPort) createServerSocket(socketType SocketType, endpoint string, conf common.PortConfig) bool {
	p.workerMu.Lock()
	p.workers = make([]*worker, conf.WorkerCount)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	p.workerMu.Unlock()

	p.workerMu.RLock()
	for _, w := range p.workers {
		w.Start()
	}
	p.workerMu.RUnlock()

	var ss socket.IServerSocket
	switch socketType {
	case SocketTCP:
		ss = tcp.NewServerSocket()
	case SocketSRT:
		ss = srt.NewServerSocket()
	default:
		p.teardownWorkers()
		return false
	}

	if err := ss.Prepare(endpoint, conf); err != nil {
		Logger.Errorf("failed to prepare %s socket on %s: %v", socketType, endpoint, err)

		// unwind the already started workers, Create must leave nothing running
		p.teardownWorkers()
		return false
	}

	p.serverSocket = ss
	p.needToStop.Store(false)

	p.loop.Add(1)
	go p.serverLoop(ss, conf)

	return true
}

func (p *physicalPort) createDatagramSocket(endpoint string, conf common.PortConfig) bool {
	ds := udp.NewDatagramSocket()

	if err := ds.Prepare(endpoint, conf); err != nil {
		Logger.Errorf("failed to prepare udp socket on %s: %v", endpoint, err)
		return false
	}

	p.datagramSocket = ds
	p.needToStop.Store(false)

	p.loop.Add(1)
	go p.datagramLoop(ds, conf)

	return true
}

func (p *physicalPort) Close() bool {
	if p.serverSocket == nil && p.datagramSocket == nil {
		return false
	}

	p.state.Store(int32(StateStopping))
	p.needToStop.Store(true)

	p.teardownWorkers()

	// the loop notices the stop flag within one dispatch timeout and closes
	// the socket itself before exiting
	p.loop.Wait()

	switch p.socketType {
	case SocketTCP, SocketSRT:
		if p.serverSocket != nil {
			if p.serverSocket.GetState() == socket.StateClosed || p.serverSocket.Close() {
				p.serverSocket = nil
				p.clearObservers()
				p.state.Store(int32(StateClosed))
				return true
			}
		}

	case SocketUDP:
		if p.datagramSocket.GetState() == socket.StateClosed || p.datagramSocket.Close() {
			p.datagramSocket = nil
			p.clearObservers()
			p.state.Store(int32(StateClosed))
			return true
		}

	default:
	}

	// the socket did not reach its closed state, the caller may retry
	return false
}

func (p *physicalPort) GetState() State {
	return State(p.state.Load())
}

func (p *physicalPort) LocalAddr() net.Addr {
	if p.serverSocket != nil {
		return p.serverSocket.LocalAddr()
	}
	if p.datagramSocket != nil {
		return p.datagramSocket.LocalAddr()
	}
	return nil
}

func (p *physicalPort) DisconnectClient(client socket.IClient) bool {
	if p.serverSocket == nil {
		return false
	}
	return p.serverSocket.DisconnectClient(client)
}

// --------------------------------------------------------------------------
// Event loops
// --------------------------------------------------------------------------

// serverLoop is the event loop of a stream port. Lifecycle events fan out to
// the observers directly on this goroutine; data events are enqueued to the
// worker owning the connection and never block here on observer work.
func (p *physicalPort) serverLoop(ss socket.IServerSocket, conf common.PortConfig) {
	defer p.loop.Done()

	p.state.Store(int32(StateOpen))

	connCb := func(client socket.IClient, state socket.ConnState, err error) {
		switch state {
		case socket.ConnStateConnected:
			Logger.Debugf("New client is connected: %s", client)
			p.metrics.connectionsAccepted.Inc()
			p.notifyConnected(client)

		case socket.ConnStateDisconnected:
			Logger.Debugf("Client is disconnected: %s", client)
			p.notifyDisconnected(client, ReasonDisconnected, nil)

		case socket.ConnStateError:
			Logger.Debugf("Client is disconnected with error: %s (%v)", client, err)
			p.notifyDisconnected(client, ReasonError, err)
		}
	}

	dataCb := func(client socket.IClient, data []byte) {
		p.metrics.bytesReceived.Add(len(data))

		w := p.workerFor(client.ID())
		if w == nil {
			// pool already torn down, the port is stopping
			p.metrics.tasksDropped.Inc()
			return
		}

		w.AddTask(client, data)
	}

	for !p.needToStop.Load() && ss.DispatchEvent(connCb, dataCb, conf.DispatchTimeout) {
	}

	if !p.needToStop.Load() {
		// the socket stopped on its own
		p.state.Store(int32(StateError))
	}

	ss.Close()

	Logger.Infof("Server is stopped")
}

// datagramLoop is the event loop of a datagram port. There is no connection
// identity to preserve ordering for, so packets fan out to the observers
// directly on this goroutine.
func (p *physicalPort) datagramLoop(ds socket.IDatagramSocket, conf common.PortConfig) {
	defer p.loop.Done()

	p.state.Store(int32(StateOpen))

	dataCb := func(remote net.Addr, data []byte) {
		p.metrics.bytesReceived.Add(len(data))
		p.notifyData(nil, remote, data)
	}

	for !p.needToStop.Load() && ds.DispatchEvent(dataCb, conf.DispatchTimeout) {
	}

	if !p.needToStop.Load() {
		p.state.Store(int32(StateError))
	}

	ds.Close()

	Logger.Infof("Server is stopped")
}

// --------------------------------------------------------------------------
// Worker pool helpers
// --------------------------------------------------------------------------

// workerFor returns the worker owning the given connection id, nil once the
// pool is torn down. Pure function of the stable connection id, the same
// connection always lands on the same worker.
func (p *physicalPort) workerFor(id uint64) *worker {
	p.workerMu.RLock()
	defer p.workerMu.RUnlock()

	if len(p.workers) == 0 {
		return nil
	}
	return p.workers[id%uint64(len(p.workers))]
}

// teardownWorkers stops every worker and discards the pool. Safe to call
// with an empty pool.
func (p *physicalPort) teardownWorkers() {
	p.workerMu.RLock()
	for _, w := range p.workers {
		w.Stop()
	}
	p.workerMu.RUnlock()

	p.workerMu.Lock()
	p.workers = nil
	p.workerMu.Unlock()
}

// --------------------------------------------------------------------------
// Observer management and fan-out
// --------------------------------------------------------------------------

func (p *physicalPort) AddObserver(observer IObserver) bool {
	if observer == nil {
		return false
	}

	p.observerMu.Lock()
	defer p.observerMu.Unlock()

	p.observers = append(p.observers, observer)
	return true
}

func (p *physicalPort) RemoveObserver(observer IObserver) bool {
	p.observerMu.Lock()
	defer p.observerMu.Unlock()

	for i, o := range p.observers {
		if o == observer {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (p *physicalPort) clearObservers() {
	p.observerMu.Lock()
	p.observers = nil
	p.observerMu.Unlock()
}

func (p *physicalPort) notifyConnected(client socket.IClient) {
	p.observerMu.RLock()
	defer p.observerMu.RUnlock()

	for _, o := range p.observers {
		o.OnConnected(client)
	}
}

func (p *physicalPort) notifyDisconnected(client socket.IClient, reason DisconnectReason, err error) {
	p.observerMu.RLock()
	defer p.observerMu.RUnlock()

	for _, o := range p.observers {
		o.OnDisconnected(client, reason, err)
	}
}

func (p *physicalPort) notifyData(client socket.IClient, remote net.Addr, data []byte) {
	p.observerMu.RLock()
	defer p.observerMu.RUnlock()

	for _, o := range p.observers {
		o.OnDataReceived(client, remote, data)
	}
}

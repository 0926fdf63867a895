package base

import (
	"net"
	"testing"
	"time"

	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
)

// testConnector is a plain TCP connector without any socket upgrades
type testConnector struct{}

func (c *testConnector) GetName() string { return "test" }

func (c *testConnector) Listen(endpoint string, _ common.PortConfig) (net.Listener, error) {
	return net.Listen("tcp", endpoint)
}

func (c *testConnector) Upgrade(_ net.Conn, _ common.PortConfig) error { return nil }

// dispatched is the flattened result of one DispatchEvent call
type dispatched struct {
	connStates []socket.ConnState
	clients    []socket.IClient
	errs       []error
	data       [][]byte
}

// dispatchUntil keeps dispatching until check is satisfied or the deadline hits
func dispatchUntil(t *testing.T, s socket.IServerSocket, d *dispatched, check func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	connCb := func(client socket.IClient, state socket.ConnState, err error) {
		d.connStates = append(d.connStates, state)
		d.clients = append(d.clients, client)
		d.errs = append(d.errs, err)
	}
	dataCb := func(_ socket.IClient, data []byte) {
		d.data = append(d.data, data)
	}

	for !check() {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for socket events")
		}
		if !s.DispatchEvent(connCb, dataCb, 50*time.Millisecond) {
			t.Fatal("DispatchEvent requested stop while events were expected")
		}
	}
}

func prepare(t *testing.T) socket.IServerSocket {
	t.Helper()

	s := NewServerSocket(&testConnector{})
	if err := s.Prepare("127.0.0.1:0", common.DefaultPortConfig()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if s.GetState() != socket.StateListening {
		t.Fatalf("Expected listening state, got %s", s.GetState())
	}
	return s
}

func TestPrepareDispatchClose(t *testing.T) {
	s := prepare(t)
	defer s.Close()

	conn, err := net.Dial("tcp", s.LocalAddr().String())
	if err != nil {
		t.Fatalf("Failed to dial socket: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("abc")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	var d dispatched
	dispatchUntil(t, s, &d, func() bool {
		total := 0
		for _, chunk := range d.data {
			total += len(chunk)
		}
		return len(d.connStates) >= 1 && total >= 3
	})

	if d.connStates[0] != socket.ConnStateConnected {
		t.Errorf("Expected connected first, got %v", d.connStates[0])
	}
	if d.clients[0] == nil || d.clients[0].ID() == 0 {
		t.Error("Connected event must carry a valid client")
	}

	if !s.Close() {
		t.Error("Close failed")
	}
	if s.GetState() != socket.StateClosed {
		t.Errorf("Expected closed state, got %s", s.GetState())
	}

	// a closed socket asks its dispatcher to stop
	if s.DispatchEvent(func(socket.IClient, socket.ConnState, error) {}, func(socket.IClient, []byte) {}, 10*time.Millisecond) {
		t.Error("DispatchEvent must return false after Close")
	}
}

func TestRemoteCloseReportsDisconnect(t *testing.T) {
	s := prepare(t)
	defer s.Close()

	conn, err := net.Dial("tcp", s.LocalAddr().String())
	if err != nil {
		t.Fatalf("Failed to dial socket: %v", err)
	}
	conn.Close()

	var d dispatched
	dispatchUntil(t, s, &d, func() bool { return len(d.connStates) >= 2 })

	if d.connStates[0] != socket.ConnStateConnected {
		t.Errorf("Expected connected first, got %v", d.connStates[0])
	}
	if d.connStates[1] != socket.ConnStateDisconnected {
		t.Errorf("Expected clean disconnect, got %v", d.connStates[1])
	}
	if d.errs[1] != nil {
		t.Errorf("Clean disconnect must not carry an error, got %v", d.errs[1])
	}
}

func TestDisconnectClientReportsDisconnect(t *testing.T) {
	s := prepare(t)
	defer s.Close()

	conn, err := net.Dial("tcp", s.LocalAddr().String())
	if err != nil {
		t.Fatalf("Failed to dial socket: %v", err)
	}
	defer conn.Close()

	var d dispatched
	dispatchUntil(t, s, &d, func() bool { return len(d.connStates) >= 1 })

	if !s.DisconnectClient(d.clients[0]) {
		t.Fatal("DisconnectClient failed for a live connection")
	}

	dispatchUntil(t, s, &d, func() bool { return len(d.connStates) >= 2 })
	if d.connStates[1] != socket.ConnStateDisconnected {
		t.Errorf("Forced close must report a clean disconnect, got %v", d.connStates[1])
	}

	if s.DisconnectClient(nil) {
		t.Error("DisconnectClient must fail for a nil client")
	}
}

func TestClientSend(t *testing.T) {
	s := prepare(t)
	defer s.Close()

	conn, err := net.Dial("tcp", s.LocalAddr().String())
	if err != nil {
		t.Fatalf("Failed to dial socket: %v", err)
	}
	defer conn.Close()

	var d dispatched
	dispatchUntil(t, s, &d, func() bool { return len(d.clients) >= 1 })

	if err := d.clients[0].Send([]byte("pong")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	buf := make([]byte, 16)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if string(buf[:n]) != "pong" {
		t.Errorf("Expected pong, got %q", buf[:n])
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := prepare(t)

	if !s.Close() {
		t.Error("First close failed")
	}
	if !s.Close() {
		t.Error("Second close must also report the closed state")
	}
}

func TestConnectionIDsAreUnique(t *testing.T) {
	s := prepare(t)
	defer s.Close()

	const conns = 5
	for i := 0; i < conns; i++ {
		conn, err := net.Dial("tcp", s.LocalAddr().String())
		if err != nil {
			t.Fatalf("Failed to dial socket: %v", err)
		}
		defer conn.Close()
	}

	var d dispatched
	dispatchUntil(t, s, &d, func() bool { return len(d.clients) >= conns })

	seen := make(map[uint64]bool)
	for _, c := range d.clients {
		if seen[c.ID()] {
			t.Errorf("Duplicate connection id %d", c.ID())
		}
		seen[c.ID()] = true
	}
}

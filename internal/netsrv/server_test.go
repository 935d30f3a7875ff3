package netsrv

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/brennhill/editor-bridge/internal/wire"
)

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	return ln
}

func TestServerEchoesFramedRequest(t *testing.T) {
	received := make(chan []byte, 1)
	srv := New(func(ctx context.Context, conn *Conn, payload []byte) {
		received <- payload
		framed, err := wire.Encode(string(payload))
		if err != nil {
			t.Errorf("wire.Encode() error = %v", err)
			return
		}
		if sendErr := conn.Send(framed); sendErr != nil {
			t.Errorf("conn.Send() error = %v", sendErr)
		}
	}, nil)

	ln := listenLoopback(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer client.Close()

	msg := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	framed, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("wire.Encode() error = %v", err)
	}
	if _, err := client.Write(framed); err != nil {
		t.Fatalf("client.Write() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != msg {
			t.Errorf("handler received %q, want %q", payload, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}

	echoBuf := make([]byte, len(framed))
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(client, echoBuf); err != nil {
		t.Fatalf("reading echo: %v", err)
	}
	if !bytes.Equal(echoBuf, framed) {
		t.Errorf("echo = %q, want %q", echoBuf, framed)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestServerReassemblesFragmentedFrameAcrossReads(t *testing.T) {
	received := make(chan []byte, 1)
	srv := New(func(ctx context.Context, conn *Conn, payload []byte) {
		received <- payload
	}, nil)

	ln := listenLoopback(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer client.Close()

	msg := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	framed, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("wire.Encode() error = %v", err)
	}

	for i := 0; i < len(framed); i += 3 {
		end := i + 3
		if end > len(framed) {
			end = len(framed)
		}
		if _, err := client.Write(framed[i:end]); err != nil {
			t.Fatalf("client.Write() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case payload := <-received:
		if string(payload) != msg {
			t.Errorf("handler received %q, want %q", payload, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler on fragmented input")
	}
}

func TestSendNotificationCoalescesDuplicateKey(t *testing.T) {
	srv := New(func(ctx context.Context, conn *Conn, payload []byte) {}, nil)
	ln := listenLoopback(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	var conn *Conn
	for time.Now().Before(deadline) {
		if conns := srv.Conns(); len(conns) == 1 {
			conn = conns[0]
			break
		}
		time.Sleep(time.Millisecond)
	}
	if conn == nil {
		t.Fatal("server never registered the accepted connection")
	}

	framed, err := wire.Encode(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`)
	if err != nil {
		t.Fatalf("wire.Encode() error = %v", err)
	}

	if err := conn.SendNotification("tools/list_changed", framed); err != nil {
		t.Fatalf("first SendNotification() error = %v", err)
	}
	if err := conn.SendNotification("tools/list_changed", framed); err != errNotificationInFlight {
		t.Fatalf("second SendNotification() error = %v, want errNotificationInFlight", err)
	}
}

func TestIsLoopbackAcceptsLoopbackAddrs(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1234}
	if !isLoopback(addr) {
		t.Error("expected 127.0.0.1 to be loopback")
	}
	addr6 := &net.TCPAddr{IP: net.ParseIP("::1"), Port: 1234}
	if !isLoopback(addr6) {
		t.Error("expected ::1 to be loopback")
	}
	nonLoopback := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 1234}
	if isLoopback(nonLoopback) {
		t.Error("expected 10.0.0.5 to be rejected")
	}
}

package server

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweepkv/sweepkv/cache"
)

// startServer brings up a server on an ephemeral port and returns a dialer.
func startServer(t *testing.T) (*Server, net.Addr) {
	t.Helper()

	c, err := cache.New(cache.Options{Shards: 4, SweepInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := New(Config{}, c, nil)
	go func() {
		if err := srv.Serve(lis); err != nil {
			t.Errorf("serve: %v", err)
		}
	}()
	t.Cleanup(func() { _ = srv.Close() })

	return srv, lis.Addr()
}

// roundTrip writes raw RESP bytes and reads n reply lines.
func roundTrip(t *testing.T, conn net.Conn, br *bufio.Reader, req string, lines int) []string {
	t.Helper()

	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, lines)
	for i := 0; i < lines; i++ {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("reading reply line %d: %v", i, err)
		}
		out = append(out, line)
	}
	return out
}

func TestServer_PingEchoSetGet(t *testing.T) {
	t.Parallel()

	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	if got := roundTrip(t, conn, br, "*1\r\n$4\r\nPING\r\n", 1); got[0] != "+PONG\r\n" {
		t.Fatalf("PING: got %q", got[0])
	}

	got := roundTrip(t, conn, br, "*2\r\n$4\r\nECHO\r\n$5\r\nhello\r\n", 2)
	if got[0] != "$5\r\n" || got[1] != "hello\r\n" {
		t.Fatalf("ECHO: got %q", got)
	}

	if got := roundTrip(t, conn, br, "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n", 1); got[0] != "+OK\r\n" {
		t.Fatalf("SET: got %q", got[0])
	}

	got = roundTrip(t, conn, br, "*2\r\n$3\r\nGET\r\n$1\r\na\r\n", 2)
	if got[0] != "$1\r\n" || got[1] != "1\r\n" {
		t.Fatalf("GET: got %q", got)
	}

	if got := roundTrip(t, conn, br, "*2\r\n$3\r\nGET\r\n$4\r\nnope\r\n", 1); got[0] != "$-1\r\n" {
		t.Fatalf("GET miss: got %q", got[0])
	}
}

// SET with PX makes the key disappear from GET after the deadline.
func TestServer_SetWithTTL(t *testing.T) {
	t.Parallel()

	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	req := "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nPX\r\n$2\r\n60\r\n"
	if got := roundTrip(t, conn, br, req, 1); got[0] != "+OK\r\n" {
		t.Fatalf("SET PX: got %q", got[0])
	}

	got := roundTrip(t, conn, br, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n", 2)
	if got[0] != "$1\r\n" || got[1] != "v\r\n" {
		t.Fatalf("GET before deadline: got %q", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := roundTrip(t, conn, br, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n", 1); got[0] != "$-1\r\n" {
		t.Fatalf("GET after deadline: got %q", got[0])
	}
}

// An unknown command gets an -ERR reply and the connection stays usable.
func TestServer_UnknownCommand(t *testing.T) {
	t.Parallel()

	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	got := roundTrip(t, conn, br, "*1\r\n$8\r\nFLUSHALL\r\n", 1)
	if len(got[0]) == 0 || got[0][0] != '-' {
		t.Fatalf("want -ERR reply, got %q", got[0])
	}

	if got := roundTrip(t, conn, br, "*1\r\n$4\r\nPING\r\n", 1); got[0] != "+PONG\r\n" {
		t.Fatalf("connection must survive a bad command, got %q", got[0])
	}
}

// Bytes that don't frame as RESP get an -ERR reply and the server hangs up.
func TestServer_ProtocolErrorDisconnects(t *testing.T) {
	t.Parallel()

	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	if _, err := conn.Write([]byte("%bogus\r\n")); err != nil {
		t.Fatal(err)
	}
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line[0] != '-' {
		t.Fatalf("want -ERR reply, got %q", line)
	}
	if _, err := br.ReadByte(); err != io.EOF {
		t.Fatalf("server must close the connection, got %v", err)
	}
}

// Concurrent clients on disjoint keys all see their own writes.
func TestServer_ConcurrentClients(t *testing.T) {
	t.Parallel()

	_, addr := startServer(t)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		key := string(rune('a' + i))
		g.Go(func() error {
			conn, err := net.Dial("tcp", addr.String())
			if err != nil {
				return err
			}
			defer conn.Close()
			br := bufio.NewReader(conn)

			set := "*3\r\n$3\r\nSET\r\n$1\r\n" + key + "\r\n$1\r\n" + key + "\r\n"
			if _, err := conn.Write([]byte(set)); err != nil {
				return err
			}
			if _, err := br.ReadString('\n'); err != nil {
				return err
			}

			get := "*2\r\n$3\r\nGET\r\n$1\r\n" + key + "\r\n"
			if _, err := conn.Write([]byte(get)); err != nil {
				return err
			}
			if _, err := br.ReadString('\n'); err != nil { // "$1"
				return err
			}
			val, err := br.ReadString('\n')
			if err != nil {
				return err
			}
			if val != key+"\r\n" {
				t.Errorf("client %s read %q", key, val)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// Close drops open connections and is idempotent.
func TestServer_Close(t *testing.T) {
	t.Parallel()

	srv, addr := startServer(t)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := srv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := srv.Close(); err != nil {
		t.Fatal("second Close must be a no-op")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := bufio.NewReader(conn).ReadByte(); err == nil {
		t.Fatal("connection must be closed by the server")
	}
}

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Transport errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrConnectTimeout   = errors.New("connect timeout")
)

// DefaultPort is the Altitude automation protocol port.
const DefaultPort = 44100

// IsTimeout reports whether err is a read/write deadline expiry rather than
// a dead connection.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// TCPTransport is a plain TCP line transport. The zero value is not usable;
// create one with NewTCPTransport.
type TCPTransport struct {
	addr string

	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
}

// NewTCPTransport creates a transport for the given host and port. Port 0
// selects DefaultPort.
func NewTCPTransport(host string, port int) *TCPTransport {
	if port == 0 {
		port = DefaultPort
	}
	return &TCPTransport{
		addr: net.JoinHostPort(host, fmt.Sprintf("%d", port)),
	}
}

// Connect dials the processor. The context bounds the dial; a context
// without deadline dials without timeout.
func (t *TCPTransport) Connect(ctx context.Context) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		if IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("dial %s: %w: %w", t.addr, ErrConnectTimeout, err)
		}
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.mu.Unlock()
	return nil
}

// Connected reports whether a connection is established.
func (t *TCPTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// ReadLine reads one line from the connection. Line terminators are
// stripped. An EOF from the peer maps to ErrConnectionClosed.
func (t *TCPTransport) ReadLine(timeout time.Duration) (string, error) {
	t.mu.Lock()
	conn, reader := t.conn, t.reader
	t.mu.Unlock()

	if conn == nil {
		return "", ErrNotConnected
	}

	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", err
		}
	} else {
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			return "", err
		}
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return "", ErrConnectionClosed
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// SendLine writes one line to the connection, appending "\n" when missing.
// Safe for concurrent callers; whole lines never interleave.
func (t *TCPTransport) SendLine(line string, timeout time.Duration) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	} else {
		if err := conn.SetWriteDeadline(time.Time{}); err != nil {
			return err
		}
	}

	if _, err := conn.Write([]byte(line)); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrConnectionClosed
		}
		return err
	}
	return nil
}

// Close tears the connection down. Safe to call multiple times and
// concurrently with a blocked ReadLine, which then returns
// ErrConnectionClosed.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.reader = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

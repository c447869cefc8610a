package gorough

import (
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	defaultPort = "2002"

	// maxResponseSize is a hard ceiling on what a server may send
	// back. Anything larger is discarded before parsing.
	maxResponseSize = 3 * MinRequestSize
)

var ErrTimeout = errors.New("transport: timed out waiting for response")

// Transport performs one blocking request/response exchange. The
// session driver owns retry policy; a Transport attempts exactly one
// round trip.
type Transport interface {
	Exchange(address string, request []byte, timeout time.Duration) ([]byte, error)
}

// UDPTransport sends Roughtime requests over UDP. The zero value is
// ready to use.
type UDPTransport struct{}

func (UDPTransport) Exchange(address string, request []byte, timeout time.Duration) ([]byte, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, defaultPort)
	}
	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: %v", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("transport: %v", err)
	}
	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("transport: %v", err)
	}

	buf := make([]byte, maxResponseSize)
	n, err := conn.Read(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: %v", err)
	}
	return buf[:n], nil
}

//go:build unix

// File: transport/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw IPv4 TCP sockets over golang.org/x/sys/unix. The echo loop works on
// non-blocking descriptors; the probe's descriptors stay blocking so a
// receive waits for its echo.

package transport

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reflector/api"
)

// PayloadSize is the fixed probe payload: one 64-bit counter reading.
const PayloadSize = 8

// DefaultBacklog is the listen(2) backlog used by the echo server.
const DefaultBacklog = 5

// ErrWouldBlock reports that a non-blocking call found nothing to do.
var ErrWouldBlock = errors.New("operation would block")

// Listen creates a non-blocking listening socket bound to INADDR_ANY:port.
func Listen(port, backlog int) (int, error) {
	if port < 0 || port > 65535 {
		return -1, api.NewError(api.ErrCodeInvalidArgument, "listen").WithContext("port", port)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, api.WrapError(api.ErrCodeSocket, "socket create", err)
	}
	unix.CloseOnExec(fd)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, api.WrapError(api.ErrCodeBind, "bind", err).WithContext("port", port)
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, api.WrapError(api.ErrCodeBind, "listen", err).WithContext("port", port)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, api.WrapError(api.ErrCodeSocket, "set nonblock", err)
	}
	return fd, nil
}

// LocalPort returns the port a socket is bound to.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, fmt.Errorf("getsockname: %w", api.ErrNotSupported)
}

// Accept takes one pending connection from a non-blocking listener and returns
// it as a non-blocking descriptor. ErrWouldBlock when nothing is pending.
func Accept(lfd int) (int, error) {
	for {
		fd, _, err := unix.Accept(lfd)
		switch {
		case err == nil:
			unix.CloseOnExec(fd)
			if err := unix.SetNonblock(fd, true); err != nil {
				unix.Close(fd)
				return -1, fmt.Errorf("set nonblock: %w", err)
			}
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			return fd, nil
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return -1, ErrWouldBlock
		default:
			return -1, fmt.Errorf("accept: %w", err)
		}
	}
}

// Dial opens a blocking TCP connection to ip:port.
func Dial(ip net.IP, port int) (int, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return -1, api.NewError(api.ErrCodeInvalidArgument, "dial: not an IPv4 address").WithContext("ip", ip.String())
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, api.WrapError(api.ErrCodeSocket, "socket create", err)
	}
	unix.CloseOnExec(fd)
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	for {
		err = unix.Connect(fd, sa)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		unix.Close(fd)
		return -1, api.WrapError(api.ErrCodeConnect, "connect", err).
			WithContext("addr", net.JoinHostPort(ip4.String(), fmt.Sprint(port)))
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, nil
}

// Send writes b with a single write(2) call and returns the bytes written.
func Send(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return 0, ErrWouldBlock
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// SendAll writes all of b, looping over short writes.
func SendAll(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := Send(fd, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Recv performs one read(2). (0, nil) means the peer closed the connection;
// ErrWouldBlock means no data was pending on a non-blocking descriptor.
func Recv(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return 0, ErrWouldBlock
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// RecvFull reads until b is full, the peer closes or an error occurs.
// It returns the bytes read; a short count with nil error means peer close.
func RecvFull(fd int, b []byte) (int, error) {
	got := 0
	for got < len(b) {
		n, err := Recv(fd, b[got:])
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, nil
		}
		got += n
	}
	return got, nil
}

// Close closes a descriptor.
func Close(fd int) error {
	return unix.Close(fd)
}

// Shutdown disables both directions of fd so that a blocked Recv on another
// goroutine returns end of stream. The descriptor stays open.
func Shutdown(fd int) error {
	if err := unix.Shutdown(fd, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

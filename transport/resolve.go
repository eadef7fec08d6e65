// File: transport/resolve.go
// Author: momentics <momentics@gmail.com>

package transport

import (
	"context"
	"errors"
	"net"

	"github.com/momentics/hioload-reflector/api"
)

// ResolveIPv4 resolves host once and returns its first IPv4 address.
// Literal addresses are returned without a lookup.
func ResolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, api.NewError(api.ErrCodeResolve, "resolve: not an IPv4 address").WithContext("host", host)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeResolve, "resolve", err).WithContext("host", host)
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, api.WrapError(api.ErrCodeResolve, "resolve", &net.DNSError{
		Err:        "no IPv4 address",
		Name:       host,
		IsNotFound: true,
	}).WithContext("host", host)
}

// Resolver exit statuses, numbered like the netdb h_errno values.
const (
	ExitHostNotFound = 1
	ExitTryAgain     = 2
	ExitNoRecovery   = 3
)

// ResolveExitCode maps a resolution failure to a process exit status.
func ResolveExitCode(err error) int {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return ExitHostNotFound
		case dnsErr.IsTemporary || dnsErr.IsTimeout:
			return ExitTryAgain
		}
	}
	return ExitNoRecovery
}

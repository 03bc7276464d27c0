// Package network provides host and network probes: port checks, interface
// and address discovery, name resolution, multicast messaging, and wrappers
// around the system ping and traceroute tools.
//
// Probes that answer a yes/no question return false on failure rather than
// an error. Only invalid arguments are reported as errors, and those wrap
// ErrInvalidArgument.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// DefaultTimeout bounds a single probe when a zero timeout is given.
const DefaultTimeout = 3 * time.Second

// System seams, replaced in tests.
var (
	listInterfaces  = psnet.InterfacesWithContext
	listConnections = psnet.ConnectionsWithContext
	lookupIP        = net.DefaultResolver.LookupIP
	hostname        = os.Hostname
	runCommand      = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).Output()
	}
)

type psConn = psnet.ConnectionStat

func validateHost(host string) error {
	if host == "" {
		return invalidArgument("host cannot be empty")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return invalidArgument("%s must be between 1 and 65535", name)
	}
	return nil
}

func timeoutOrDefault(timeout time.Duration) (time.Duration, error) {
	if timeout < 0 {
		return 0, invalidArgument("timeout must be positive")
	}
	if timeout == 0 {
		return DefaultTimeout, nil
	}
	return timeout, nil
}

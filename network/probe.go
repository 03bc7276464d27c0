package network

import (
	"context"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/utilz/httpx"
)

// Probe targets, replaced in tests.
var (
	publicIPEndpoint  = "https://api.ipify.org"
	internetProbeAddr = "8.8.8.8:53"
	outboundProbeAddr = "8.8.8.8:80"
)

// MaxScanWorkers caps the number of concurrent dials in ScanOpenPorts.
const MaxScanWorkers = 64

// CheckPortOpen reports whether a TCP connection to host:port succeeds within
// timeout. A zero timeout means DefaultTimeout.
func CheckPortOpen(ctx context.Context, host string, port int, timeout time.Duration) (bool, error) {
	if err := validateHost(host); err != nil {
		return false, err
	}
	if err := validatePort("port", port); err != nil {
		return false, err
	}
	timeout, err := timeoutOrDefault(timeout)
	if err != nil {
		return false, err
	}
	return dialable(ctx, host, port, timeout), nil
}

func dialable(ctx context.Context, host string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ScanOpenPorts dials every port in [start, end] on host and returns the
// open ones in ascending order.
func ScanOpenPorts(ctx context.Context, host string, start, end int, timeout time.Duration) ([]int, error) {
	if err := validateHost(host); err != nil {
		return nil, err
	}
	if err := validatePort("start_port", start); err != nil {
		return nil, err
	}
	if err := validatePort("end_port", end); err != nil {
		return nil, err
	}
	if start > end {
		return nil, invalidArgument("start_port must be <= end_port")
	}
	timeout, err := timeoutOrDefault(timeout)
	if err != nil {
		return nil, err
	}

	open := make([]bool, end-start+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxScanWorkers)
	for port := start; port <= end; port++ {
		g.Go(func() error {
			open[port-start] = dialable(gctx, host, port, timeout)
			return nil
		})
	}
	_ = g.Wait()

	ports := []int{}
	for i, ok := range open {
		if ok {
			ports = append(ports, start+i)
		}
	}
	return ports, nil
}

// IsInternetAvailable reports whether a public DNS server accepts a TCP
// connection within timeout.
func IsInternetAvailable(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", internetProbeAddr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// LocalIP returns the address of the interface used for outbound traffic.
// No packet is sent. It falls back to 127.0.0.1.
func LocalIP() string {
	if ip := outboundIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

func outboundIP() string {
	conn, err := net.Dial("udp4", outboundProbeAddr)
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

// PublicIP asks an external service for this host's public IPv4 address.
// When the service fails or answers with something that is not an IPv4
// address, it falls back to the outbound interface address and then to the
// address the hostname resolves to. It returns "" when nothing works.
func PublicIP(ctx context.Context, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	resp, err := httpx.Get(ctx, publicIPEndpoint, httpx.Options{Timeout: timeout})
	if err == nil {
		if ip := strings.TrimSpace(resp.Text); isIPv4(ip) {
			return ip
		}
	}
	return fallbackPublicIP(ctx)
}

func fallbackPublicIP(ctx context.Context) string {
	if ip := outboundIP(); isIPv4(ip) {
		return ip
	}
	host, err := hostname()
	if err != nil {
		return ""
	}
	ips, err := lookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return ""
	}
	return ips[0].String()
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
}

// ResolveHostname returns the first IPv4 address of host.
func ResolveHostname(ctx context.Context, host string) (string, error) {
	if host == "" {
		return "", invalidArgument("hostname cannot be empty")
	}
	ips, err := lookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return "", invalidArgument("Could not resolve hostname: %s", host)
	}
	return ips[0].String(), nil
}

// SpeedResult is the outcome of NetworkSpeed.
type SpeedResult struct {
	DownloadMbps float64
	Bytes        int
	Elapsed      time.Duration
}

// NetworkSpeed downloads testURL and reports the observed throughput in
// megabits per second. An empty body reports zero.
func NetworkSpeed(ctx context.Context, testURL string, timeout time.Duration) (*SpeedResult, error) {
	if testURL == "" {
		return nil, invalidArgument("test_url cannot be empty")
	}
	if timeout < 0 {
		return nil, invalidArgument("timeout must be positive")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	start := time.Now()
	resp, err := httpx.Get(ctx, testURL, httpx.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	res := &SpeedResult{Bytes: len(resp.Content), Elapsed: elapsed}
	if res.Bytes > 0 && elapsed > 0 {
		res.DownloadMbps = float64(res.Bytes) * 8 / elapsed.Seconds() / 1e6
	}
	return res, nil
}

// IsPortListening reports whether any local socket is listening on port.
func IsPortListening(ctx context.Context, port int) (bool, error) {
	if err := validatePort("port", port); err != nil {
		return false, err
	}
	conns, err := listConnections(ctx, "inet")
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(conns, func(c psConn) bool {
		return c.Status == "LISTEN" && int(c.Laddr.Port) == port
	}), nil
}

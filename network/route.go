package network

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var routeTablePath = "/proc/net/route"

// DefaultGateway returns the IPv4 address of the default route, or "" when
// it cannot be determined. The kernel routing table is read directly where
// it exists, otherwise the platform route tool is queried.
func DefaultGateway(ctx context.Context) string {
	if data, err := os.ReadFile(routeTablePath); err == nil {
		if gw := parseRouteTable(data); gw != "" {
			return gw
		}
	}
	var (
		out []byte
		err error
	)
	switch runtime.GOOS {
	case "darwin", "freebsd", "openbsd", "netbsd":
		out, err = runCommand(ctx, "route", "-n", "get", "default")
	case "windows":
		return ""
	default:
		out, err = runCommand(ctx, "ip", "route", "show", "default")
	}
	if err != nil {
		return ""
	}
	return parseRouteCommand(out)
}

// parseRouteTable reads /proc/net/route, where addresses are little endian
// hex words.
func parseRouteTable(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Scan() // header
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		v, err := strconv.ParseUint(fields[2], 16, 32)
		if err != nil {
			continue
		}
		ip := make(net.IP, 4)
		binary.LittleEndian.PutUint32(ip, uint32(v))
		return ip.String()
	}
	return ""
}

// parseRouteCommand accepts both "default via A.B.C.D ..." from ip(8) and
// "gateway: A.B.C.D" from route(8).
func parseRouteCommand(out []byte) string {
	fields := strings.Fields(string(out))
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "via" || fields[i] == "gateway:" {
			return fields[i+1]
		}
	}
	return ""
}

// PingHost sends count echo requests to host with the system ping tool and
// reports whether it succeeded. timeout is the per-reply wait; zero means
// one second.
func PingHost(ctx context.Context, host string, count int, timeout time.Duration) (bool, error) {
	if err := validateHost(host); err != nil {
		return false, err
	}
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return false, invalidArgument("count must be positive")
	}
	if timeout < 0 {
		return false, invalidArgument("timeout must be positive")
	}
	if timeout == 0 {
		timeout = time.Second
	}
	_, err := runCommand(ctx, "ping", pingArgs(runtime.GOOS, host, count, timeout)...)
	return err == nil, nil
}

func pingArgs(goos, host string, count int, timeout time.Duration) []string {
	n := strconv.Itoa(count)
	switch goos {
	case "windows":
		return []string{"-n", n, "-w", strconv.FormatInt(timeout.Milliseconds(), 10), host}
	case "darwin":
		return []string{"-c", n, "-W", strconv.FormatInt(timeout.Milliseconds(), 10), host}
	default:
		secs := int(math.Ceil(timeout.Seconds()))
		return []string{"-c", n, "-W", strconv.Itoa(max(secs, 1)), host}
	}
}

// Traceroute runs the system traceroute tool and returns the address of each
// responding hop. Hops that time out are omitted. Any failure returns an
// empty list.
func Traceroute(ctx context.Context, host string, maxHops int) ([]string, error) {
	if err := validateHost(host); err != nil {
		return nil, err
	}
	if maxHops == 0 {
		maxHops = 30
	}
	if maxHops < 0 {
		return nil, invalidArgument("max_hops must be positive")
	}
	name, args := "traceroute", []string{"-n", "-m", strconv.Itoa(maxHops), host}
	if runtime.GOOS == "windows" {
		name, args = "tracert", []string{"-d", "-h", strconv.Itoa(maxHops), host}
	}
	out, err := runCommand(ctx, name, args...)
	if err != nil {
		return []string{}, nil
	}
	return parseTraceroute(out), nil
}

func parseTraceroute(out []byte) []string {
	hops := []string{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Scan() // header
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		for _, f := range fields[1:] {
			f = strings.Trim(f, "()[]")
			if net.ParseIP(f) != nil {
				hops = append(hops, f)
				break
			}
		}
	}
	return hops
}

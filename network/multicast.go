package network

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
)

const maxDatagram = 65535

func multicastGroup(group string, port int) (*net.UDPAddr, error) {
	ip := net.ParseIP(group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return nil, invalidArgument("group must be an IPv4 multicast address, got %q", group)
	}
	if err := validatePort("port", port); err != nil {
		return nil, err
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

// MulticastSend sends message to the multicast group with the given TTL. A
// zero TTL means 1, which keeps the datagram on the local network.
func MulticastSend(group string, port int, message string, ttl int) error {
	dst, err := multicastGroup(group, port)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = 1
	}
	if ttl < 0 || ttl > 255 {
		return invalidArgument("ttl must be between 1 and 255")
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return err
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastTTL(ttl); err != nil {
		return err
	}
	_ = p.SetMulticastLoopback(true)
	_, err = p.WriteTo([]byte(message), nil, dst)
	return err
}

// MulticastReceive joins the multicast group on every interface and waits up
// to timeout for one datagram. ok is false when nothing arrives in time.
func MulticastReceive(ctx context.Context, group string, port int, timeout time.Duration) (message string, ok bool, err error) {
	addr, err := multicastGroup(group, port)
	if err != nil {
		return "", false, err
	}
	timeout, err = timeoutOrDefault(timeout)
	if err != nil {
		return "", false, err
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return "", false, err
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	joined := false
	ifaces, _ := net.Interfaces()
	for i := range ifaces {
		if ifaces[i].Flags&net.FlagMulticast == 0 || ifaces[i].Flags&net.FlagUp == 0 {
			continue
		}
		if p.JoinGroup(&ifaces[i], &net.UDPAddr{IP: addr.IP}) == nil {
			joined = true
		}
	}
	if !joined {
		if err := p.JoinGroup(nil, &net.UDPAddr{IP: addr.IP}); err != nil {
			return "", false, err
		}
	}

	deadline := time.Now().Add(timeout)
	if d, has := ctx.Deadline(); has && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", false, err
	}
	buf := make([]byte, maxDatagram)
	n, _, _, err := p.ReadFrom(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(buf[:n]), true, nil
}

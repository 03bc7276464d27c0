package network

import (
	"context"
	"net"
	"slices"
	"strings"
)

// splitAddr parses an interface address as reported by the system, either
// bare or in CIDR form.
func splitAddr(s string) (net.IP, *net.IPNet) {
	if ip, ipnet, err := net.ParseCIDR(s); err == nil {
		return ip, ipnet
	}
	return net.ParseIP(s), nil
}

// NetworkInterfaces maps each interface name to its IPv4 addresses.
// Interfaces without an IPv4 address map to an empty slice.
func NetworkInterfaces(ctx context.Context) (map[string][]string, error) {
	ifaces, err := listInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(ifaces))
	for _, iface := range ifaces {
		addrs := []string{}
		for _, a := range iface.Addrs {
			if ip, _ := splitAddr(a.Addr); ip != nil && ip.To4() != nil {
				addrs = append(addrs, ip.String())
			}
		}
		out[iface.Name] = addrs
	}
	return out, nil
}

// IPv6Addresses returns every IPv6 address of every interface, without
// prefix length or zone.
func IPv6Addresses(ctx context.Context) ([]string, error) {
	ifaces, err := listInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			addr, _, _ := strings.Cut(a.Addr, "%")
			if ip, _ := splitAddr(addr); ip != nil && ip.To4() == nil {
				out = append(out, ip.String())
			}
		}
	}
	return out, nil
}

// MACAddress returns the hardware address of the first non-loopback
// interface that has one, formatted as six colon separated lowercase hex
// pairs. It returns "00:00:00:00:00:00" when there is none.
func MACAddress(ctx context.Context) string {
	const none = "00:00:00:00:00:00"
	ifaces, err := listInterfaces(ctx)
	if err != nil {
		return none
	}
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") || iface.HardwareAddr == "" {
			continue
		}
		hw, err := net.ParseMAC(iface.HardwareAddr)
		if err != nil || len(hw) != 6 {
			continue
		}
		if s := hw.String(); s != none {
			return s
		}
	}
	return none
}

// SubnetMask returns the dotted IPv4 netmask of iface, or "" if the interface
// does not exist or has no IPv4 address.
func SubnetMask(ctx context.Context, iface string) (string, error) {
	if iface == "" {
		return "", invalidArgument("interface cannot be empty")
	}
	ifaces, err := listInterfaces(ctx)
	if err != nil {
		return "", err
	}
	for _, candidate := range ifaces {
		if candidate.Name != iface {
			continue
		}
		for _, a := range candidate.Addrs {
			ip, ipnet := splitAddr(a.Addr)
			if ip == nil || ip.To4() == nil || ipnet == nil {
				continue
			}
			m := ipnet.Mask
			if len(m) == net.IPv6len {
				m = m[12:]
			}
			return net.IP(m).String(), nil
		}
		return "", nil
	}
	return "", nil
}

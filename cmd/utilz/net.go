package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoobzio/utilz/network"
)

func newNetCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "net",
		Short: "Probe the network",
	}
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout per probe")

	cmd.AddCommand(&cobra.Command{
		Use:   "public-ip",
		Short: "Show the public IP address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ip := network.PublicIP(cmd.Context(), timeout)
			if ip == "" {
				return fmt.Errorf("public IP unavailable")
			}
			return a.print(cmd, map[string]string{"public_ip": ip}, func(w io.Writer) { fmt.Fprintln(w, ip) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "local-ip",
		Short: "Show the address used for outbound traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ip := network.LocalIP()
			return a.print(cmd, map[string]string{"local_ip": ip}, func(w io.Writer) { fmt.Fprintln(w, ip) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "interfaces",
		Short: "List interfaces and their IPv4 addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ifaces, err := network.NetworkInterfaces(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, ifaces, func(w io.Writer) {
				names := make([]string, 0, len(ifaces))
				for name := range ifaces {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Fprintf(w, "%-12s %s\n", name, strings.Join(ifaces[name], ", "))
				}
			})
		},
	})

	var start, end int
	portsCmd := &cobra.Command{
		Use:   "ports HOST",
		Short: "Scan a TCP port range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.log.Info("scanning ports", "host", args[0], "start", start, "end", end)
			open, err := network.ScanOpenPorts(cmd.Context(), args[0], start, end, timeout)
			if err != nil {
				return err
			}
			return a.print(cmd, open, func(w io.Writer) {
				if len(open) == 0 {
					fmt.Fprintln(w, "no open ports")
				}
				for _, p := range open {
					fmt.Fprintln(w, p)
				}
			})
		},
	}
	portsCmd.Flags().IntVar(&start, "start", 1, "First port")
	portsCmd.Flags().IntVar(&end, "end", 1024, "Last port")
	cmd.AddCommand(portsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve HOST",
		Short: "Resolve a host name to an IPv4 address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, err := network.ResolveHostname(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]string{"host": args[0], "ip": ip}, func(w io.Writer) { fmt.Fprintln(w, ip) })
		},
	})

	var count int
	pingCmd := &cobra.Command{
		Use:   "ping HOST",
		Short: "Check whether a host answers ICMP echo requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := network.PingHost(cmd.Context(), args[0], count, timeout)
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]any{"host": args[0], "reachable": up}, func(w io.Writer) {
				if up {
					fmt.Fprintf(w, "%s is reachable\n", args[0])
				} else {
					fmt.Fprintf(w, "%s is unreachable\n", args[0])
				}
			})
		},
	}
	pingCmd.Flags().IntVar(&count, "count", 1, "Echo requests to send")
	cmd.AddCommand(pingCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "gateway",
		Short: "Show the default gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw := network.DefaultGateway(cmd.Context())
			if gw == "" {
				return fmt.Errorf("default gateway not found")
			}
			return a.print(cmd, map[string]string{"gateway": gw}, func(w io.Writer) { fmt.Fprintln(w, gw) })
		},
	})

	return cmd
}

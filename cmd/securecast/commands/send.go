package commands

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"securecast/internal/domain"
)

// send <file> --to host[:port]...: multicast a file to the given receivers.
func sendCmd() *cobra.Command {
	var to []string
	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Multicast a file to one or more receivers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var eps []domain.Endpoint
			for _, t := range to {
				ep, err := parseReceiver(t, appCtx.Config.HandshakePort)
				if err != nil {
					return err
				}
				eps = append(eps, ep)
			}

			rep, err := appCtx.Sender.Send(cmd.Context(), args[0], eps)
			for _, o := range rep.Receivers {
				if o.Ready() {
					fmt.Printf("receiver %s ready (key %s)\n", o.Endpoint, o.Fingerprint)
				} else {
					fmt.Printf("receiver %s excluded: %v\n", o.Endpoint, o.Err)
				}
			}
			if err != nil {
				return err
			}
			fmt.Printf("Transfer: %s\n", rep.TransferID)
			fmt.Printf("Sent %s: %d packets, %d bytes in %s\n", rep.Filename, rep.Stream.Packets, rep.Stream.Bytes, rep.Stream.Elapsed)
			fmt.Printf("Repair: %d sessions, %d packets resent, %d/%d receivers complete (%s)\n",
				rep.Repair.Sessions, rep.Repair.Served, rep.Repair.Completed, rep.Ready, rep.Repair.Reason)
			if rep.Spooled {
				fmt.Printf("Spooled; re-serve with: securecast serve-repair %s\n", rep.TransferID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&to, "to", nil, "receiver handshake endpoint host[:port] (repeatable)")
	_ = cmd.MarkFlagRequired("to")
	f.StringVar(&flagCfg.GroupName, "group-name", "", "group name announced to receivers")
	f.IntVar(&flagCfg.TTL, "ttl", 1, "multicast TTL")
	f.BoolVar(&flagCfg.DisableLoopback, "no-loopback", false, "do not loop multicast back to this host")
	f.IntVar(&flagCfg.ChunkSize, "chunk-size", 1024, "payload bytes per datagram")
	f.Float64Var(&flagCfg.Rate, "rate", 200, "datagrams per second; negative disables pacing")
	f.IntVar(&flagCfg.Burst, "burst", 16, "pacing burst size")
	f.BoolVar(&flagCfg.AnnounceTotal, "announce-total", false, "announce the packet count in the metadata datagram")
	f.BoolVar(&flagCfg.RepeatMetadata, "repeat-metadata", false, "send metadata again before end of stream")
	f.DurationVar(&flagDur.startDelay, "start-delay", 0, "pause between handshake and streaming (default 1s)")
	f.StringVar(&flagCfg.RepairMode, "repair-mode", "multiplexed", "repair server: multiplexed or sequential")
	f.DurationVar(&flagDur.repairWindow, "repair-window", 0, "repair window (default 60s)")
	f.BoolVar(&flagCfg.Spool, "spool", false, "persist sent datagrams for serve-repair")
	return cmd
}

// parseReceiver accepts host or host:port.
func parseReceiver(s string, defPort int) (domain.Endpoint, error) {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return domain.Endpoint{Host: s, Port: defPort}, nil
	}
	ep, err := domain.ParseEndpoint(s)
	if err != nil {
		return domain.Endpoint{}, fmt.Errorf("--to %q: %w", s, err)
	}
	return ep, nil
}

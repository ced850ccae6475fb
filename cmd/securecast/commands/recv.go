package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"securecast/internal/domain"
)

// recv: wait for one sender and write the received file.
func recvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Receive one file from a sender",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Waiting for a sender on %s\n", appCtx.Config.HandshakeAddr())
			rep, err := appCtx.Receiver.Receive(cmd.Context())
			if rep.Sender != "" {
				fmt.Printf("Sender: %s (our key %s), group %q %s\n", rep.Sender, rep.Fingerprint, rep.GroupName, rep.Group)
			}
			if err != nil {
				if errors.Is(err, domain.ErrMetadataMissing) {
					return fmt.Errorf("no metadata received, cannot name the file: %w", err)
				}
				return err
			}
			fmt.Printf("Transfer: %s (%s, end: %s)\n", rep.TransferID, rep.Filename, rep.End)
			fmt.Printf("Packets: %d received, %d repaired, %d rejected, %d expected\n",
				rep.Stats.Received, rep.Stats.Repaired, rep.Stats.Rejected, rep.Expected)
			if rep.RepairErr != nil {
				fmt.Printf("Repair failed: %v\n", rep.RepairErr)
			}
			if len(rep.Missing) > 0 {
				fmt.Printf("WARNING: %d packets still missing, file is incomplete: %v\n", len(rep.Missing), rep.Missing)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", rep.Path, rep.Bytes)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flagCfg.OutputDir, "output", "./received_files", "directory for received files")
	f.DurationVar(&flagDur.idleTimeout, "idle-timeout", 0, "stop listening after this much silence (default 30s)")
	f.IntVar(&flagCfg.RepairRetries, "repair-retries", 5, "repair connection attempts")
	f.DurationVar(&flagDur.repairRetryDelay, "repair-retry-delay", 0, "delay between repair attempts (default 2s)")
	f.IntVar(&flagCfg.RepairRounds, "repair-rounds", 3, "repair request rounds")
	return cmd
}

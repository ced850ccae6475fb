package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// serve-repair <transfer-id>: answer repair requests from a spooled transfer.
func serveRepairCmd() *cobra.Command {
	var (
		receivers int
		list      bool
	)
	cmd := &cobra.Command{
		Use:   "serve-repair [transfer-id]",
		Short: "Serve repair requests for a spooled transfer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list || len(args) == 0 {
				ids, err := appCtx.Spool.ListSpools()
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Println("no spooled transfers")
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			}
			sum, err := appCtx.Sender.ServeSpool(cmd.Context(), args[0], receivers)
			if err != nil {
				return err
			}
			fmt.Printf("Repair: %d sessions, %d packets resent, %d skipped, %d complete (%s)\n",
				sum.Sessions, sum.Served, sum.Skipped, sum.Completed, sum.Reason)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&receivers, "receivers", 0, "close after this many completion signals (0: wait for the window)")
	f.BoolVar(&list, "list", false, "list spooled transfers")
	f.StringVar(&flagCfg.RepairMode, "repair-mode", "multiplexed", "repair server: multiplexed or sequential")
	f.DurationVar(&flagDur.repairWindow, "repair-window", 0, "repair window (default 60s)")
	return cmd
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var limit int
	var verify bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show or verify the vault's operation log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			if verify {
				if err := eng.VerifyAudit(cmd.Context()); err != nil {
					return err
				}
				success("audit chain intact")
				return nil
			}
			entries, err := eng.AuditEntries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-7s %-11s %s",
					time.Unix(e.TS, 0).Format("2006-01-02 15:04:05"), e.Op, e.Entity, e.Name)
				if e.Details != "" {
					line += "  " + e.Details
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 = all)")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the hash chain instead of listing")
	return cmd
}

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cemililkim/Clerk/internal/vault"
)

func newBackupCmd() *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a portable encrypted backup file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			data, err := eng.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			if outFile == "" {
				outFile = fmt.Sprintf("clerk-backup-%s.json", time.Now().Format("2006-01-02"))
			}
			if err := os.WriteFile(outFile, data, 0600); err != nil {
				return err
			}
			success("backup written to %s (values stay encrypted)", outFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "backup file path (default clerk-backup-<date>.json)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var info, force bool
	cmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Replace the vault with a backup's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			meta, err := vault.BackupInfo(data)
			if err != nil {
				return err
			}
			fmt.Printf("Backup of %s, created %s\n", orDash(meta.VaultName), meta.CreatedAt)
			fmt.Printf("Contents: %d projects, %d environments, %d variables\n",
				meta.Projects, meta.Environments, meta.Variables)
			if info {
				return nil
			}
			if !force && !confirm("Replace the current vault with this backup?") {
				return nil
			}
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			if err := eng.RestoreBackup(cmd.Context(), data); err != nil {
				return err
			}
			success("vault restored; unlock with the backup's master password")
			return nil
		},
	}
	cmd.Flags().BoolVar(&info, "info", false, "show backup details without restoring")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}

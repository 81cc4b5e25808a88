package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cemililkim/Clerk/internal/vault"
)

func newInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			if eng.Exists() {
				return vault.ErrVaultExists
			}
			pw, err := readNewPassword("Master password: ")
			if err != nil {
				return err
			}
			var meta vault.Metadata
			if err := withSpinner("Deriving key", func() error {
				meta, err = eng.Create(cmd.Context(), name, pw)
				return err
			}); err != nil {
				return err
			}
			defer eng.Close()
			success("vault initialized (id %s)", meta.VaultID)
			warn("There is no password recovery. Losing the master password loses the data.")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for the vault")
	return cmd
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the vault for this terminal session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			success("vault unlocked")
			return nil
		},
	}
}

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Lock the vault and clear the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			eng.Lock()
			success("vault locked")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault state and contents summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			meta, err := eng.Meta()
			if err != nil {
				return err
			}
			dir, _ := vaultDir()
			fmt.Printf("Vault:    %s\n", orDash(meta.Name))
			fmt.Printf("ID:       %s\n", meta.VaultID)
			fmt.Printf("Location: %s\n", dir)
			fmt.Printf("Created:  %s\n", time.Unix(meta.CreatedAt, 0).Format(time.RFC3339))

			if ok, _ := eng.AutoUnlock(cmd.Context()); ok {
				defer eng.Close()
				stats, err := eng.Counts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("State:    unlocked (cached session)\n")
				fmt.Printf("Contents: %d projects, %d environments, %d variables\n",
					stats.Projects, stats.Environments, stats.Variables)
			} else {
				fmt.Printf("State:    locked\n")
			}
			return nil
		},
	}
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			if !eng.Exists() {
				return vault.ErrVaultNotFound
			}
			oldPw, err := readPassword("Current master password: ")
			if err != nil {
				return err
			}
			newPw, err := readNewPassword("New master password: ")
			if err != nil {
				return err
			}
			if err := withSpinner("Re-encrypting vault", func() error {
				return eng.ChangePassword(cmd.Context(), oldPw, newPw)
			}); err != nil {
				return err
			}
			defer eng.Close()
			success("master password changed, all values re-encrypted")
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

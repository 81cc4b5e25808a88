// Package cli wires the clerk command tree. Commands stay thin: resolve
// names, prompt where needed, call the vault engine, print.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Cemililkim/Clerk/internal/platform"
	"github.com/Cemililkim/Clerk/internal/store"
	"github.com/Cemililkim/Clerk/internal/vault"
)

var (
	flagVaultDir  string
	flagVerbose   bool
	flagNoSession bool

	logger zerolog.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clerk",
		Short: "Local-first encrypted secret manager",
		Long: `Clerk keeps project secrets on your own machine, encrypted at rest
under a key derived from your master password. Secrets are organized as
projects, environments within a project, and variables within an environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if flagVerbose {
				level = zerolog.DebugLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()
			if err := platform.DisableCoreDumps(); err != nil {
				logger.Debug().Err(err).Msg("could not disable core dumps")
			}
		},
	}
	root.PersistentFlags().StringVar(&flagVaultDir, "vault-dir", "", "vault directory (default: <user config dir>/clerk)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&flagNoSession, "no-session", false, "do not cache the unlocked session")

	root.AddCommand(
		newInitCmd(),
		newUnlockCmd(),
		newLockCmd(),
		newStatusCmd(),
		newPasswdCmd(),
		newProjectCmd(),
		newEnvCmd(),
		newSetCmd(),
		newGetCmd(),
		newListCmd(),
		newDeleteCmd(),
		newCopyCmd(),
		newImportCmd(),
		newExportCmd(),
		newRunCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newAuditCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fail(err)
		return 1
	}
	return 0
}

func vaultDir() (string, error) {
	if flagVaultDir != "" {
		return flagVaultDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "clerk"), nil
}

func newEngine() (*vault.Engine, error) {
	dir, err := vaultDir()
	if err != nil {
		return nil, err
	}
	return vault.New(vault.Config{Dir: dir, Logger: logger}), nil
}

// openUnlocked returns an engine ready for secret operations: session cache
// first, password prompt otherwise.
func openUnlocked(cmd *cobra.Command) (*vault.Engine, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, err
	}
	if !eng.Exists() {
		return nil, vault.ErrVaultNotFound
	}
	if ok, err := eng.AutoUnlock(cmd.Context()); err == nil && ok {
		return eng, nil
	}
	pw, err := readPassword("Master password: ")
	if err != nil {
		return nil, err
	}
	if err := withSpinner("Unlocking", func() error {
		return eng.Unlock(cmd.Context(), pw, !flagNoSession)
	}); err != nil {
		return nil, err
	}
	return eng, nil
}

// resolveEnv turns project and environment names into the environment record.
func resolveEnv(cmd *cobra.Command, eng *vault.Engine, project, env string) (store.Environment, error) {
	p, err := eng.ProjectByName(cmd.Context(), project)
	if err != nil {
		return store.Environment{}, err
	}
	return eng.EnvironmentByName(cmd.Context(), p.ID, env)
}

func success(format string, a ...any) { color.Green("✓ "+format, a...) }
func warn(format string, a ...any)    { color.Yellow(format, a...) }
func fail(err error)                  { color.Red("✗ %v", err) }

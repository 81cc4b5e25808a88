package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var project, env string
	cmd := &cobra.Command{
		Use:   "run -p PROJECT -e ENV -- COMMAND [ARGS...]",
		Short: "Run a command with an environment's variables injected",
		Long: `Decrypt an environment and run a command with those variables in its
process environment, on top of the current one. Nothing is written to disk.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			environ, err := resolveEnv(cmd, eng, project, env)
			if err != nil {
				return err
			}
			values, err := eng.DecryptEnvironment(cmd.Context(), environ.ID)
			if err != nil {
				return err
			}

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Env = os.Environ()
			for k, v := range values {
				child.Env = append(child.Env, k+"="+v)
			}
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			err = child.Run()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				os.Exit(exitErr.ExitCode())
			}
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

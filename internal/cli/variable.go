package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cemililkim/Clerk/internal/platform"
)

// clipboardTTL is how long a copied secret survives in the paste buffer.
const clipboardTTL = 25 * time.Second

func newSetCmd() *cobra.Command {
	var project, env, description string
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a variable (creates or replaces)",
		Args:  cobra.ExactArgs(2),
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
			v, err := eng.SetVariable(cmd.Context(), environ.ID, args[0], args[1], description)
			if err != nil {
				return err
			}
			success("%s set in %s/%s", v.Key, project, env)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "optional description")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newGetCmd() *cobra.Command {
	var project, env string
	var toClipboard bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a variable's decrypted value",
		Args:  cobra.ExactArgs(1),
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
			value, err := eng.GetValue(cmd.Context(), environ.ID, args[0])
			if err != nil {
				return err
			}
			if toClipboard {
				if err := platform.NewClipboard().Set(value, clipboardTTL); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				success("%s copied to clipboard, clears in %s", args[0], clipboardTTL)
				// Keep the process alive long enough to clear.
				time.Sleep(clipboardTTL + time.Second)
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.Flags().BoolVarP(&toClipboard, "copy", "c", false, "copy to clipboard instead of printing")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newListCmd() *cobra.Command {
	var project, env string
	var showValues bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an environment's variables",
		Args:  cobra.NoArgs,
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
			vars, err := eng.Variables(cmd.Context(), environ.ID)
			if err != nil {
				return err
			}
			if len(vars) == 0 {
				fmt.Printf("no variables in %s/%s yet\n", project, env)
				return nil
			}
			var values map[string]string
			if showValues {
				values, err = eng.DecryptEnvironment(cmd.Context(), environ.ID)
				if err != nil {
					return err
				}
			}
			for _, v := range vars {
				if showValues {
					fmt.Printf("%s=%s", v.Key, values[v.Key])
				} else {
					fmt.Printf("%s=********", v.Key)
				}
				if v.Description != "" {
					fmt.Printf("  # %s", v.Description)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.Flags().BoolVar(&showValues, "show-values", false, "decrypt and print values")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var project, env string
	var force bool
	cmd := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a variable",
		Args:  cobra.ExactArgs(1),
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
			if !force && !confirm(fmt.Sprintf("Delete %s from %s/%s?", args[0], project, env)) {
				return nil
			}
			if err := eng.DeleteVariable(cmd.Context(), environ.ID, args[0]); err != nil {
				return err
			}
			success("%s deleted", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newCopyCmd() *cobra.Command {
	var project, from, to string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "copy KEY",
		Short: "Copy a variable to another environment",
		Long: `Copy a variable between two environments of the same project. The value
is decrypted and re-encrypted for the destination; ciphertext is bound to
where it lives and cannot be moved as raw bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			src, err := resolveEnv(cmd, eng, project, from)
			if err != nil {
				return err
			}
			dst, err := resolveEnv(cmd, eng, project, to)
			if err != nil {
				return err
			}
			if err := eng.CopyVariable(cmd.Context(), src.ID, dst.ID, args[0], overwrite); err != nil {
				return err
			}
			success("%s copied from %s to %s", args[0], from, to)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVar(&from, "from", "", "source environment (required)")
	cmd.Flags().StringVar(&to, "to", "", "destination environment (required)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace the destination value if the key exists")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

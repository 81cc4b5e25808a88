package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage environments within a project",
	}
	cmd.AddCommand(newEnvCreateCmd(), newEnvListCmd(), newEnvDeleteCmd())
	return cmd
}

func newEnvCreateCmd() *cobra.Command {
	var project, description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			p, err := eng.ProjectByName(cmd.Context(), project)
			if err != nil {
				return err
			}
			env, err := eng.CreateEnvironment(cmd.Context(), p.ID, args[0], description)
			if err != nil {
				return err
			}
			success("environment %q created in project %q", env.Name, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "optional description")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newEnvListCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			p, err := eng.ProjectByName(cmd.Context(), project)
			if err != nil {
				return err
			}
			envs, err := eng.Environments(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			if len(envs) == 0 {
				fmt.Printf("no environments in %q yet\n", p.Name)
				return nil
			}
			for _, env := range envs {
				vars, err := eng.Variables(cmd.Context(), env.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%s  (%d variables)", env.Name, len(vars))
				if env.Description != "" {
					fmt.Printf("  %s", env.Description)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newEnvDeleteCmd() *cobra.Command {
	var project string
	var force bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an environment and its variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			env, err := resolveEnv(cmd, eng, project, args[0])
			if err != nil {
				return err
			}
			if !force && !confirm(fmt.Sprintf("Delete environment %q and all its variables?", env.Name)) {
				return nil
			}
			if err := eng.DeleteEnvironment(cmd.Context(), env.ID); err != nil {
				return err
			}
			success("environment %q deleted", env.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	cmd.MarkFlagRequired("project")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectCreateCmd(), newProjectListCmd(), newProjectDeleteCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			p, err := eng.CreateProject(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			success("project %q created", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "optional description")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			projects, err := eng.Projects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("no projects yet")
				return nil
			}
			for _, p := range projects {
				envs, err := eng.Environments(cmd.Context(), p.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%s  (%d environments)", p.Name, len(envs))
				if p.Description != "" {
					fmt.Printf("  %s", p.Description)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newProjectDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a project and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			p, err := eng.ProjectByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !force && !confirm(fmt.Sprintf("Delete project %q and all its environments and variables?", p.Name)) {
				return nil
			}
			if err := eng.DeleteProject(cmd.Context(), p.ID); err != nil {
				return err
			}
			success("project %q deleted", p.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}

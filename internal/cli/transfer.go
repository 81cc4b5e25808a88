package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cemililkim/Clerk/internal/vault"
)

func newImportCmd() *cobra.Command {
	var project, env string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import variables from a dotenv file",
		Long: `Import KEY=VALUE lines from a dotenv file ("-" reads stdin). Valid lines
land even when others fail; existing keys are skipped unless --overwrite.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			eng, err := openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			environ, err := resolveEnv(cmd, eng, project, env)
			if err != nil {
				return err
			}
			report, err := eng.ImportEnv(cmd.Context(), environ.ID, text, overwrite)
			if err != nil {
				return err
			}
			success("%d imported, %d updated into %s/%s", report.Imported, report.Updated, project, env)
			for _, k := range report.Skipped {
				warn("skipped %s (exists, use --overwrite)", k)
			}
			for _, e := range report.Errors {
				warn("%s", e.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace values for keys that already exist")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newExportCmd() *cobra.Command {
	var project, env, format, outFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an environment's variables",
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
			out, err := eng.ExportEnv(cmd.Context(), environ.ID, format)
			if err != nil {
				return err
			}
			if outFile == "" {
				fmt.Print(out)
				return nil
			}
			// Exports hold plaintext secrets; owner-only from the start.
			if err := os.WriteFile(outFile, []byte(out), 0600); err != nil {
				return err
			}
			success("exported %s/%s to %s", project, env, outFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name (required)")
	cmd.Flags().StringVarP(&format, "format", "F", vault.FormatEnv, "output format: env, json, or csv")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "write to file instead of stdout")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("env")
	return cmd
}

func readInput(path string) (string, error) {
	if path == "-" {
		buf, err := io.ReadAll(os.Stdin)
		return string(buf), err
	}
	buf, err := os.ReadFile(path)
	return string(buf), err
}

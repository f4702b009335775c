package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caffeineduck/rulebox/executor"
)

func newCleanCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean <file>",
		Short: "Print a rule file with self-imports commented out",
		Long: `Print the source rulebox would load for a rule file: imports of the
danger module are commented out since its members are globals.

Use --write to update the file in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cleanFile(cmd, afero.NewOsFs(), args[0], v.GetBool("write"))
		},
	}

	cmd.Flags().BoolP("write", "w", false, "Write the result back to the file")
	return cmd
}

func cleanFile(cmd *cobra.Command, fsys afero.Fs, path string, write bool) error {
	src, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	cleaned := executor.CleanScriptSource(string(src))
	if !write {
		_, err := fmt.Fprint(cmd.OutOrStdout(), cleaned)
		return err
	}

	if cleaned == string(src) {
		return nil
	}
	if err := afero.WriteFile(fsys, path, []byte(cleaned), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleaned %s\n", path)
	return nil
}

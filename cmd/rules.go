package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rulesCmd: witness rules
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rewrite rules in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			logger.Error("Error loading configuration", zap.Error(err))
			return err
		}
		rules, err := config.RuleSet()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPATTERN\tREPLACEMENT")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name(), r.LHS(), r.RHS())
		}
		return w.Flush()
	},
}

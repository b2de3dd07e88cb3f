package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/external/xapi"
)

var verbsCmd = &cobra.Command{
	Use:   "verbs",
	Short: "List the verb names accepted in xapi.verbs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		vocab := xapi.ADLVocabulary()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID")
		for _, name := range vocab.Names() {
			verb, _ := vocab.Verb(name)
			fmt.Fprintf(w, "%s\t%s\n", verb.Name, verb.ID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(verbsCmd)
}

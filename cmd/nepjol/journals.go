package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newJournalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journals",
		Short: "List the journals currently published on the source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			listings, err := a.Service.ListJournals(cmd.Context())
			if err != nil {
				return fmt.Errorf("list journals: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHORT NAME\tTITLE\tURL")
			for _, l := range listings {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.ShortName, l.Name, l.URL)
			}
			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write listing: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d journals\n", len(listings))
			return nil
		},
	}
}

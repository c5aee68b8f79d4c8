package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mathanim/internal/models"
)

var qualitiesCmd = &cobra.Command{
	Use:   "qualities",
	Short: "List supported render qualities",
	RunE: func(*cobra.Command, []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "QUALITY\tFLAG\tFOLDER")
		for _, q := range models.Qualities {
			flag, err := q.Flag()
			if err != nil {
				return err
			}
			folder, _ := q.Folder()
			fmt.Fprintf(w, "%s\t%s\t%s\n", q, flag, folder)
		}
		return w.Flush()
	},
}

func init() { rootCmd.AddCommand(qualitiesCmd) }

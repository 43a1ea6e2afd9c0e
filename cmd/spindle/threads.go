package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List stored conversation threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := initRuntime()
		if err != nil {
			return err
		}

		metas := rt.Store.GetThreadMetas()
		if len(metas) == 0 {
			fmt.Println("no threads")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUPDATED\tLAST MESSAGE")
		for _, meta := range metas {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				meta.ID, meta.Title, meta.UpdatedAt.Format("2006-01-02 15:04"), meta.LastMessage)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
}

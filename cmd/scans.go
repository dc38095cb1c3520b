package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/propsight/scout-cli/internal/model"
	"github.com/propsight/scout-cli/internal/store"
)

var (
	scansStatus string
	scansLimit  int
	scansOffset int
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List recent resolution attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		records, err := st.ListScans(ctx, store.ScanFilter{
			Status: model.ScanStatus(scansStatus),
			Limit:  scansLimit,
			Offset: scansOffset,
		})
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("no scans recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSTATUS\tORIGIN\tHEADING\tRESULT")
		for _, rec := range records {
			heading := "-"
			if rec.Heading != nil {
				heading = fmt.Sprintf("%.0f°", *rec.Heading)
			}
			result := rec.Error
			if rec.Resolved != nil {
				result = fmt.Sprintf("%s (%d%%)", rec.Resolved.Street, rec.Resolved.Confidence)
			}
			fmt.Fprintf(w, "%s\t%s\t%.5f,%.5f\t%s\t%s\n",
				rec.CreatedAt.Format("2006-01-02 15:04"),
				rec.Status,
				rec.Origin.Lat, rec.Origin.Lng,
				heading,
				result,
			)
		}
		return w.Flush()
	},
}

func init() {
	scansCmd.Flags().StringVar(&scansStatus, "status", "", "filter by status: resolved, no_match, or failed")
	scansCmd.Flags().IntVar(&scansLimit, "limit", 20, "max scans to list")
	scansCmd.Flags().IntVar(&scansOffset, "offset", 0, "scans to skip")
	rootCmd.AddCommand(scansCmd)
}

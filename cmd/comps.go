package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/propsight/scout-cli/internal/comps"
	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

var (
	compsID        string
	compsAddress   string
	compsKind      string
	compsLimit     int
	compsBeds      int
	compsBaths     float64
	compsSqft      float64
	compsYearBuilt int
	compsLat       float64
	compsLng       float64
)

var compsCmd = &cobra.Command{
	Use:   "comps",
	Short: "Fetch and rank comparable listings for a property",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("comps"); err != nil {
			return err
		}
		if compsID == "" && compsAddress == "" {
			return eris.New("either --id or --address is required")
		}
		if compsLimit <= 0 {
			compsLimit = cfg.Comps.Limit
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		svc := buildCompsService(st)
		subject := model.SubjectProperty{
			ID:        compsID,
			Address:   compsAddress,
			Beds:      compsBeds,
			Baths:     compsBaths,
			Sqft:      compsSqft,
			YearBuilt: compsYearBuilt,
			Point:     geomath.Point{Lat: compsLat, Lng: compsLng},
		}

		switch compsKind {
		case "sale", "rental":
			kind := model.CompsKind(compsKind)
			res := svc.Fetch(ctx, subject, kind, compsLimit, 0)
			return printResult(res)
		case "both":
			sale, rental := svc.FetchBoth(ctx, subject, compsLimit)
			if err := printResult(sale); err != nil {
				return err
			}
			fmt.Println()
			return printResult(rental)
		default:
			return eris.Errorf("invalid --kind %q: want sale, rental, or both", compsKind)
		}
	},
}

// printResult writes one ranked comparable table to stdout. Prices get
// locale-aware thousands separators.
func printResult(res comps.Result) error {
	if !res.OK {
		return eris.Errorf("%s comps fetch failed (%s, status %d, %d attempts)",
			res.Kind, res.ErrorKind, res.StatusCode, res.Attempts)
	}

	source := "upstream"
	if res.FromCache {
		source = "cache"
	}
	fmt.Printf("%s comparables: %d (%s)\n", res.Kind, len(res.Records), source)
	if len(res.Records) == 0 {
		return nil
	}

	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tPRICE\tADDRESS\tBD\tBA\tSQFT\tDIST(MI)")
	for _, rec := range res.Records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f\t%.0f\t%.2f\n",
			rec.SimilarityScore,
			p.Sprintf("$%d", int64(rec.Price)),
			rec.Address,
			rec.Beds,
			rec.Baths,
			rec.Sqft,
			rec.DistanceMiles,
		)
	}
	return w.Flush()
}

func init() {
	compsCmd.Flags().StringVar(&compsID, "id", "", "upstream property ID")
	compsCmd.Flags().StringVar(&compsAddress, "address", "", "subject street address")
	compsCmd.Flags().StringVar(&compsKind, "kind", "both", "comparable kind: sale, rental, or both")
	compsCmd.Flags().IntVar(&compsLimit, "limit", 0, "max comparables per kind (default from config)")
	compsCmd.Flags().IntVar(&compsBeds, "beds", 0, "subject bedroom count")
	compsCmd.Flags().Float64Var(&compsBaths, "baths", 0, "subject bathroom count")
	compsCmd.Flags().Float64Var(&compsSqft, "sqft", 0, "subject living area in square feet")
	compsCmd.Flags().IntVar(&compsYearBuilt, "year-built", 0, "subject year built")
	compsCmd.Flags().Float64Var(&compsLat, "lat", 0, "subject latitude")
	compsCmd.Flags().Float64Var(&compsLng, "lng", 0, "subject longitude")
	rootCmd.AddCommand(compsCmd)
}

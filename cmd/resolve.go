package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
	"github.com/propsight/scout-cli/internal/resolver"
	"github.com/propsight/scout-cli/internal/sensor"
)

var (
	resolveLat      float64
	resolveLng      float64
	resolveHeading  float64
	resolveDistance float64
	resolveMag      []string
	resolveFlat     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the property the device is pointing at",
	Long:  "Projects a target point from GPS position, compass heading, and estimated distance, then reverse-looks-up the property there. Heading can be given directly or derived from raw magnetometer samples.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		heading, err := resolveHeadingValue(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r, err := buildResolver()
		if err != nil {
			return err
		}

		origin := geomath.Point{Lat: resolveLat, Lng: resolveLng}
		start := time.Now()
		resolved, resolveErr := r.Resolve(ctx, origin, heading, resolveDistance)

		rec := model.ScanRecord{
			Origin:     origin,
			Heading:    heading,
			DistanceM:  resolveDistance,
			DurationMs: time.Since(start).Milliseconds(),
		}
		switch {
		case resolveErr == nil:
			rec.Status = model.ScanStatusResolved
			rec.Resolved = resolved
		case eris.Is(resolveErr, resolver.ErrNoPropertyMatched):
			rec.Status = model.ScanStatusNoMatch
			rec.Error = resolveErr.Error()
		default:
			rec.Status = model.ScanStatusFailed
			rec.Error = resolveErr.Error()
		}
		if _, err := st.SaveScan(ctx, rec); err != nil {
			zap.L().Warn("save scan record failed", zap.Error(err))
		}

		switch {
		case resolveErr == nil:
		case eris.Is(resolveErr, resolver.ErrHeadingUnavailable):
			return eris.New("compass heading unavailable: pass --heading or --mag samples")
		case eris.Is(resolveErr, resolver.ErrLocationUnavailable):
			return eris.New("device location invalid: --lat must be in [-90,90] and --lng in [-180,180]")
		case eris.Is(resolveErr, resolver.ErrNoPropertyMatched):
			return eris.New("no property matched: nothing found along the aim or in the scan cone")
		default:
			return resolveErr
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resolved)
	},
}

// resolveHeadingValue returns the compass heading from flags: --heading
// wins, otherwise raw --mag samples are fused. nil means no heading.
func resolveHeadingValue(cmd *cobra.Command) (*float64, error) {
	if cmd.Flags().Changed("heading") {
		h := geomath.NormalizeHeading(resolveHeading)
		return &h, nil
	}

	if len(resolveMag) == 0 {
		return nil, nil
	}

	orientation := sensor.OrientationPortrait
	if resolveFlat {
		orientation = sensor.OrientationFlat
	}
	fusion := sensor.NewFusion(
		sensor.WithOrientation(orientation),
		sensor.WithAlpha(cfg.Sensor.Alpha),
		sensor.WithBeta(cfg.Sensor.Beta),
	)

	for _, raw := range resolveMag {
		parts := strings.Split(raw, ",")
		if len(parts) != 3 {
			return nil, eris.Errorf("invalid --mag sample %q: want x,y,z", raw)
		}
		var vals [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, eris.Wrapf(err, "invalid --mag sample %q", raw)
			}
			vals[i] = v
		}
		if _, err := fusion.Ingest(sensor.Sample{X: vals[0], Y: vals[1], Z: vals[2]}); err != nil {
			return nil, err
		}
	}

	h, ok := fusion.Heading()
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func init() {
	resolveCmd.Flags().Float64Var(&resolveLat, "lat", 0, "device latitude (required)")
	resolveCmd.Flags().Float64Var(&resolveLng, "lng", 0, "device longitude (required)")
	resolveCmd.Flags().Float64Var(&resolveHeading, "heading", 0, "compass heading in degrees")
	resolveCmd.Flags().Float64Var(&resolveDistance, "distance", 50, "estimated distance to target in meters")
	resolveCmd.Flags().StringArrayVar(&resolveMag, "mag", nil, "raw magnetometer sample x,y,z (repeatable; fused when --heading is absent)")
	resolveCmd.Flags().BoolVar(&resolveFlat, "flat", false, "device held flat instead of portrait")
	_ = resolveCmd.MarkFlagRequired("lat")
	_ = resolveCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(resolveCmd)
}

package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propsight/scout-cli/internal/comps"
	"github.com/propsight/scout-cli/internal/config"
	"github.com/propsight/scout-cli/internal/resolver"
	"github.com/propsight/scout-cli/internal/retrieval"
	"github.com/propsight/scout-cli/internal/store"
	"github.com/propsight/scout-cli/pkg/listings"
	"github.com/propsight/scout-cli/pkg/revgeo"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "scout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func retrievalConfig(rc config.RetrievalConfig) retrieval.Config {
	return retrieval.Config{
		MaxAttempts:       rc.MaxAttempts,
		PerAttemptTimeout: time.Duration(rc.AttemptTimeoutSecs) * time.Second,
		BackoffUnit:       time.Duration(rc.BackoffUnitSecs) * time.Second,
		RatePerSecond:     rc.RatePerSecond,
		Burst:             rc.Burst,
	}
}

// buildResolver assembles the reverse-lookup cascade and the targeting
// resolver from config. The parcel provider loads ahead of the HTTP one
// because local shapefile hits are free.
func buildResolver() (*resolver.Resolver, error) {
	var providers []revgeo.Provider

	if cfg.Reverse.ParcelShpPath != "" {
		parcel, err := revgeo.NewParcelProvider(cfg.Reverse.ParcelShpPath)
		if err != nil {
			return nil, eris.Wrap(err, "load parcel shapefile")
		}
		providers = append(providers, parcel)
	}
	if cfg.Reverse.BaseURL != "" {
		rc := retrieval.NewClient(retrievalConfig(cfg.Retrieval))
		providers = append(providers, revgeo.NewHTTPProvider(cfg.Reverse.BaseURL, rc))
	}
	if len(providers) == 0 {
		return nil, eris.New("no reverse-lookup provider configured")
	}

	cascade := revgeo.NewCascade(providers...)
	return resolver.New(cascade,
		resolver.WithHalfAngle(cfg.Scan.HalfAngleDeg),
		resolver.WithDistanceWindow(cfg.Scan.DistanceWindowM),
		resolver.WithMaxProbes(cfg.Scan.MaxProbes),
	), nil
}

// buildCompsService wires the listings client, ranking weights, and store
// cache into the comparables service.
func buildCompsService(st store.Store) *comps.Service {
	weights := comps.DefaultWeights()
	if cfg.Comps.WeightsPath != "" {
		w, err := comps.LoadWeights(cfg.Comps.WeightsPath)
		if err != nil {
			zap.L().Warn("using default ranking weights", zap.Error(err))
		} else {
			weights = w
		}
	}

	rc := retrieval.NewClient(retrievalConfig(cfg.Retrieval))
	client := listings.NewClient(cfg.Listings.Key, cfg.Listings.BaseURL,
		listings.WithRetrievalClient(rc),
	)

	var cache comps.Cache
	if st != nil {
		cache = st
	}
	ttl := time.Duration(cfg.Comps.CacheTTLHours) * time.Hour
	return comps.NewService(client, cache, ttl, weights)
}

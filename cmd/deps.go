package main

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/fetcher"
	"github.com/nexus-paies/fiscal-updater/internal/history"
)

func newFetcher(fc config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:      fc.UserAgent,
		Accept:         fc.Accept,
		AcceptLanguage: fc.AcceptLanguage,
		Timeout:        fc.Timeout(),
		MaxBodyBytes:   fc.MaxBodyBytes,
		HostRate:       rate.Limit(fc.HostRate),
	})
}

func initHistory(ctx context.Context, hc config.HistoryConfig) (history.Store, error) {
	return history.Open(ctx, hc.Driver, hc.DatabaseURL)
}

// runHistory opens the history store for an update run. Open failures are
// logged and yield a nil store.
func runHistory(ctx context.Context, hc config.HistoryConfig) history.Store {
	st, err := initHistory(ctx, hc)
	if err != nil {
		zap.L().Error("update: history unavailable, continuing without it",
			zap.String("driver", hc.Driver), zap.Error(err))
		return nil
	}
	return st
}

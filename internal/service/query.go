package service

import (
	"context"

	"mandi/internal/models"
	"mandi/internal/repository"
	"mandi/internal/resolver"
	"mandi/internal/trend"
)

// QueryService is the read facade the HTTP layer talks to.
type QueryService struct {
	Resolver *resolver.Resolver
	Trends   *trend.Aggregator
	Store    repository.Repository
}

func (s *QueryService) Prices(ctx context.Context, q models.Query) (resolver.Result, error) {
	return s.Resolver.Resolve(ctx, q)
}

func (s *QueryService) CommodityTrend(ctx context.Context, q models.Query, days int) (*trend.CommodityTrend, error) {
	return s.Trends.CommodityTrend(ctx, q, days)
}

func (s *QueryService) MarketTrend(ctx context.Context, q models.Query, days int) (*trend.MarketWideTrend, error) {
	return s.Trends.MarketTrend(ctx, q, days)
}

func (s *QueryService) CacheStats(ctx context.Context) (repository.CacheStats, error) {
	return s.Store.CacheStats(ctx)
}

func (s *QueryService) SyncStates(ctx context.Context) ([]models.SyncState, error) {
	return s.Store.ListSyncStates(ctx)
}

package lsalt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/gaf-clearance/internal/gaf"
)

// GridLoader fetches the LSALT grid for one region.
type GridLoader interface {
	FetchGrid(ctx context.Context, region gaf.Region) ([]gaf.GridCell, error)
}

// Registry holds the immutable LSALT grid of every region.
type Registry struct {
	grids map[gaf.Region][]gaf.GridCell
}

// Load fetches the grids of all regions concurrently. Any region failing
// fails the whole load.
func Load(ctx context.Context, loader GridLoader, regions []gaf.Region, logger *slog.Logger) (*Registry, error) {
	var mu sync.Mutex
	grids := make(map[gaf.Region][]gaf.GridCell, len(regions))

	g, ctx := errgroup.WithContext(ctx)
	for _, region := range regions {
		g.Go(func() error {
			cells, err := loader.FetchGrid(ctx, region)
			if err != nil {
				return fmt.Errorf("load lsalt grid for %s: %w", region, err)
			}

			mu.Lock()
			grids[region] = cells
			mu.Unlock()

			logger.Debug("lsalt grid loaded", "region", region, "cells", len(cells))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("lsalt grids loaded", "regions", len(grids))
	return &Registry{grids: grids}, nil
}

// NewRegistry wraps already-loaded grids.
func NewRegistry(grids map[gaf.Region][]gaf.GridCell) *Registry {
	return &Registry{grids: grids}
}

// Cells returns the grid cells of region in their published order.
func (r *Registry) Cells(region gaf.Region) []gaf.GridCell {
	return r.grids[region]
}

// Regions reports how many regions have a grid.
func (r *Registry) Regions() int {
	return len(r.grids)
}

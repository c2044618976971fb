package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"questions/internal/config"
	"questions/internal/models"
	"questions/internal/repository"
)

// Page size limits
const (
	DefaultPerPage = 12
	MaxPerPage     = 100
)

// Store runs prepared listing queries
type Store interface {
	CountMatching(ctx context.Context, sq repository.SearchQuery) (int, error)
	FindMatching(ctx context.Context, sq repository.SearchQuery) ([]*models.Question, error)
}

// Request is one listing request
type Request struct {
	Filter  Filter
	Order   Order
	Page    int
	PerPage int
	// Session keys the random order seed
	Session string
}

// Result is one page of questions
type Result struct {
	Questions []*models.Question `json:"questions"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
	Order     Order              `json:"order"`
}

// Searcher lists published questions
type Searcher struct {
	store Store
}

// NewSearcher creates a new searcher
func NewSearcher(store Store) *Searcher {
	return &Searcher{store: store}
}

// Search counts and fetches one page concurrently
func (s *Searcher) Search(ctx context.Context, req Request, settings config.ComponentSettings) (*Result, error) {
	where, args, err := Build(req.Filter, settings)
	if err != nil {
		return nil, err
	}

	order := ResolveOrder(req.Order, settings)
	page, perPage := paginate(req.Page, req.PerPage)

	sq := repository.SearchQuery{
		Where:   where,
		Args:    args,
		OrderBy: orderBy[order],
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}
	if order == OrderRandom {
		seed := SeedFor(req.Session)
		sq.Seed = &seed
	}

	return run(ctx, s.store, sq, order, page, perPage)
}

func run(ctx context.Context, store Store, sq repository.SearchQuery, order Order, page, perPage int) (*Result, error) {
	result := &Result{Page: page, PerPage: perPage, Order: order}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := store.CountMatching(gctx, sq)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		result.Total = total
		return nil
	})
	g.Go(func() error {
		questions, err := store.FindMatching(gctx, sq)
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		result.Questions = questions
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if result.Questions == nil {
		result.Questions = []*models.Question{}
	}
	return result, nil
}

func paginate(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return page, perPage
}

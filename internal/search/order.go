package search

import (
	"hash/fnv"
	"slices"

	"questions/internal/config"
)

// Order is a listing order
type Order string

const (
	OrderRandom          Order = "random"
	OrderRecent          Order = "recent"
	OrderMostVoted       Order = "most_voted"
	OrderMostEndorsed    Order = "most_endorsed"
	OrderMostCommented   Order = "most_commented"
	OrderMostFollowed    Order = "most_followed"
	OrderWithMoreAuthors Order = "with_more_authors"
)

var orderBy = map[Order]string{
	OrderRandom:          "random()",
	OrderRecent:          "q.published_at DESC, q.id DESC",
	OrderMostVoted:       "q.votes_count DESC, q.id",
	OrderMostEndorsed:    "q.endorsements_count DESC, q.id",
	OrderMostCommented:   "q.comments_count DESC, q.id",
	OrderMostFollowed:    "q.follows_count DESC, q.id",
	OrderWithMoreAuthors: "q.coauthorships_count DESC, q.id",
}

// AvailableOrders lists the orders a component offers
func AvailableOrders(s config.ComponentSettings) []Order {
	orders := []Order{OrderRandom, OrderRecent}
	if s.VotesAvailable() {
		orders = append(orders, OrderMostVoted)
	}
	if s.EndorsementsEnabled {
		orders = append(orders, OrderMostEndorsed)
	}
	if s.CommentsEnabled {
		orders = append(orders, OrderMostCommented)
	}
	return append(orders, OrderMostFollowed, OrderWithMoreAuthors)
}

// DefaultOrder is most_voted while voting is closed and counts are
// visible, random otherwise
func DefaultOrder(s config.ComponentSettings) Order {
	if s.VotesAvailable() && s.VotesBlocked {
		return OrderMostVoted
	}
	return OrderRandom
}

// ResolveOrder returns requested when the component offers it and the
// default order otherwise
func ResolveOrder(requested Order, s config.ComponentSettings) Order {
	if slices.Contains(AvailableOrders(s), requested) {
		return requested
	}
	return DefaultOrder(s)
}

// SeedFor maps a session token to a setseed value in [-1, 1] so a visitor
// keeps the same random order across pages
func SeedFor(session string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(session))
	return float64(h.Sum32())/float64(1<<31) - 1
}

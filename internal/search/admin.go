package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"questions/internal/models"
	"questions/internal/repository"
)

// StatePublished buckets of the admin listing
const (
	BucketEmendation           = 0
	BucketPublished            = 1
	BucketAnsweredNotPublished = 2
)

// AdminFilter holds the admin listing criteria
type AdminFilter struct {
	ComponentID    int64
	State          string
	StatePublished *int
	ValuatorRoleID int64
	IsEmendation   *bool
	Text           string
	// AssignedToRoleIDs restricts valuators to their own assignments.
	// Nil means no restriction.
	AssignedToRoleIDs []int64
}

// AdminSort orders the admin listing
type AdminSort string

const (
	AdminSortID                  AdminSort = "id"
	AdminSortValuationsAscending AdminSort = "valuation_assignments_count_asc"
	AdminSortValuationsDesc      AdminSort = "valuation_assignments_count_desc"
)

const valuationCount = "(SELECT COUNT(*) FROM valuation_assignments va WHERE va.question_id = q.id)"

var adminOrderBy = map[AdminSort]string{
	AdminSortID:                  "q.id DESC",
	AdminSortValuationsAscending: valuationCount + " ASC, q.id DESC",
	AdminSortValuationsDesc:      valuationCount + " DESC, q.id DESC",
}

// BuildAdmin turns the admin filter into a where clause. Drafts and
// participatory text drafts are excluded.
func BuildAdmin(f AdminFilter) (string, []any, error) {
	c := &clauses{}
	c.add("q.component_id = %s", c.arg(f.ComponentID))
	c.add("q.published_at IS NOT NULL")

	if f.AssignedToRoleIDs != nil {
		if len(f.AssignedToRoleIDs) == 0 {
			c.add("FALSE")
		} else {
			c.add("EXISTS (SELECT 1 FROM valuation_assignments va WHERE va.question_id = q.id AND va.valuator_role_id = ANY(%s))",
				c.arg(pq.Array(f.AssignedToRoleIDs)))
		}
	}

	switch f.State {
	case "":
	case models.StateNotAnswered:
		c.add("(q.state IS NULL OR q.state = 'not_answered')")
	case models.StateEvaluating, models.StateAccepted, models.StateRejected, models.StateWithdrawn:
		c.add("q.state = %s", c.arg(f.State))
	default:
		return "", nil, fmt.Errorf("%w: unknown state %q", ErrInvalidFilter, f.State)
	}

	if f.StatePublished != nil {
		switch *f.StatePublished {
		case BucketEmendation:
			c.add(isEmendation)
		case BucketPublished:
			c.add("q.state_published_at IS NOT NULL")
		case BucketAnsweredNotPublished:
			c.add("q.state_published_at IS NULL AND q.answered_at IS NOT NULL AND NOT %s", isEmendation)
		default:
			return "", nil, fmt.Errorf("%w: unknown state_published bucket %d", ErrInvalidFilter, *f.StatePublished)
		}
	}

	if f.ValuatorRoleID != 0 {
		c.add("EXISTS (SELECT 1 FROM valuation_assignments va WHERE va.question_id = q.id AND va.valuator_role_id = %s)",
			c.arg(f.ValuatorRoleID))
	}

	if f.IsEmendation != nil {
		if *f.IsEmendation {
			c.add(isEmendation)
		} else {
			c.add("NOT %s", isEmendation)
		}
	}

	if text := strings.TrimSpace(f.Text); text != "" {
		if id, err := strconv.ParseInt(text, 10, 64); err == nil {
			c.add("(q.id = %s OR q.title::text ILIKE %s)", c.arg(id), c.arg("%"+escapeLike(text)+"%"))
		} else {
			c.add("q.title::text ILIKE %s", c.arg("%"+escapeLike(text)+"%"))
		}
	}

	return c.where(), c.args, nil
}

// AdminRequest is one admin listing request
type AdminRequest struct {
	Filter  AdminFilter
	Sort    AdminSort
	Page    int
	PerPage int
}

// SearchAdmin lists questions for the admin dashboard
func (s *Searcher) SearchAdmin(ctx context.Context, req AdminRequest) (*Result, error) {
	where, args, err := BuildAdmin(req.Filter)
	if err != nil {
		return nil, err
	}

	sort, ok := adminOrderBy[req.Sort]
	if !ok {
		sort = adminOrderBy[AdminSortID]
	}
	page, perPage := paginate(req.Page, req.PerPage)

	return run(ctx, s.store, repository.SearchQuery{
		Where:   where,
		Args:    args,
		OrderBy: sort,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}, "", page, perPage)
}

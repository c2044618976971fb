// Package search builds the public and admin question listings.
package search

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"questions/internal/config"
	"questions/internal/models"
)

// ErrInvalidFilter is returned for filter values outside the known sets
var ErrInvalidFilter = errors.New("invalid filter")

// Origin values
const (
	OriginOfficial  = "official"
	OriginCitizens  = "citizens"
	OriginUserGroup = "user_group"
	OriginMeeting   = "meeting"
)

// Activity values
const (
	ActivityAll         = "all"
	ActivityMyQuestions = "my_questions"
	ActivityVoted       = "voted"
)

// Sentinels of the scope and category filters
const (
	ScopeGlobal     = "global"
	CategoryWithout = "without"
)

// Filter holds the public listing criteria. Empty fields do not filter.
type Filter struct {
	ComponentID   int64
	SearchText    string
	Origin        []string
	Activity      string
	States        []string
	ScopeIDs      []string
	CategoryIDs   []string
	RelatedTo     string
	CurrentUserID int64
}

// clauses accumulates AND-ed conditions and their positional arguments
type clauses struct {
	conds []string
	args  []any
}

func (c *clauses) arg(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *clauses) add(format string, args ...any) {
	c.conds = append(c.conds, fmt.Sprintf(format, args...))
}

func (c *clauses) where() string {
	return strings.Join(c.conds, "\n\t\t  AND ")
}

// firstCoauthor selects a column of the question's first coauthorship
func firstCoauthor(column string) string {
	return "(SELECT c." + column + " FROM coauthorships c WHERE c.question_id = q.id ORDER BY c.id LIMIT 1)"
}

const isEmendation = "EXISTS (SELECT 1 FROM amendments a WHERE a.emendation_id = q.id)"

// Build turns the filter into a where clause for the questions table
func Build(f Filter, s config.ComponentSettings) (string, []any, error) {
	c := &clauses{}
	c.add("q.component_id = %s", c.arg(f.ComponentID))
	c.add("q.published_at IS NOT NULL")
	c.add("q.hidden_at IS NULL")

	if s.AmendmentsVisibility == config.AmendmentsVisibilityParticipants {
		if f.CurrentUserID == 0 {
			c.add("NOT %s", isEmendation)
		} else {
			c.add("(NOT %s OR EXISTS (SELECT 1 FROM amendments a WHERE a.emendation_id = q.id AND a.amender_id = %s))",
				isEmendation, c.arg(f.CurrentUserID))
		}
	}

	if text := strings.TrimSpace(f.SearchText); text != "" {
		pattern := c.arg("%" + escapeLike(text) + "%")
		c.add("(q.title::text ILIKE %[1]s OR q.body::text ILIKE %[1]s OR q.reference ILIKE %[1]s OR q.id::text = %[2]s)",
			pattern, c.arg(text))
	}

	if err := buildOrigin(c, f.Origin); err != nil {
		return "", nil, err
	}
	if err := buildActivity(c, f.Activity, f.CurrentUserID); err != nil {
		return "", nil, err
	}
	if err := buildStates(c, f.States); err != nil {
		return "", nil, err
	}
	if err := buildScopes(c, f.ScopeIDs); err != nil {
		return "", nil, err
	}
	if err := buildCategories(c, f.CategoryIDs); err != nil {
		return "", nil, err
	}

	if f.RelatedTo != "" {
		c.add(`EXISTS (
			SELECT 1 FROM resource_links l
			WHERE (l.from_type = 'question' AND l.from_id = q.id AND l.to_type = %[1]s)
			   OR (l.to_type = 'question' AND l.to_id = q.id AND l.from_type = %[1]s)
		)`, c.arg(f.RelatedTo))
	}

	return c.where(), c.args, nil
}

func buildOrigin(c *clauses, origins []string) error {
	if len(origins) == 0 {
		return nil
	}
	authorType := firstCoauthor("author_type")
	var ors []string
	for _, o := range dedupe(origins) {
		switch o {
		case OriginOfficial:
			ors = append(ors, authorType+" = 'organization'")
		case OriginCitizens:
			ors = append(ors, authorType+" <> 'organization'")
		case OriginUserGroup:
			ors = append(ors, "("+authorType+" = 'user' AND "+firstCoauthor("user_group_id")+" IS NOT NULL)")
		case OriginMeeting:
			ors = append(ors, authorType+" = 'meeting'")
		default:
			return fmt.Errorf("%w: unknown origin %q", ErrInvalidFilter, o)
		}
	}
	c.add("(%s)", strings.Join(ors, " OR "))
	return nil
}

func buildActivity(c *clauses, activity string, userID int64) error {
	switch activity {
	case "", ActivityAll:
		return nil
	case ActivityMyQuestions, ActivityVoted:
	default:
		return fmt.Errorf("%w: unknown activity %q", ErrInvalidFilter, activity)
	}

	if userID == 0 {
		c.add("FALSE")
		return nil
	}
	if activity == ActivityMyQuestions {
		c.add("EXISTS (SELECT 1 FROM coauthorships c WHERE c.question_id = q.id AND c.author_type = 'user' AND c.author_id = %s)",
			c.arg(userID))
		return nil
	}
	c.add("EXISTS (SELECT 1 FROM question_votes v WHERE v.question_id = q.id AND v.author_id = %s AND NOT v.temporary)",
		c.arg(userID))
	return nil
}

func buildStates(c *clauses, states []string) error {
	if len(states) == 0 {
		c.add("(q.state IS NULL OR q.state <> 'withdrawn')")
		return nil
	}

	var ors []string
	withdrawn := false
	for _, s := range dedupe(states) {
		switch s {
		case models.StateAccepted, models.StateRejected, models.StateEvaluating:
			ors = append(ors, fmt.Sprintf("(q.state = %s AND q.state_published_at IS NOT NULL)", c.arg(s)))
		case models.StateNotAnswered:
			ors = append(ors, "(q.state_published_at IS NULL OR q.state = 'not_answered')")
		case models.StateWithdrawn:
			withdrawn = true
			ors = append(ors, "q.state = 'withdrawn'")
		default:
			return fmt.Errorf("%w: unknown state %q", ErrInvalidFilter, s)
		}
	}
	if !withdrawn {
		c.add("(q.state IS NULL OR q.state <> 'withdrawn')")
	}
	c.add("(%s)", strings.Join(ors, " OR "))
	return nil
}

func buildScopes(c *clauses, values []string) error {
	if len(values) == 0 {
		return nil
	}
	ids, sentinel, err := splitIDs(values, ScopeGlobal)
	if err != nil {
		return err
	}

	var ors []string
	if sentinel {
		ors = append(ors, "q.scope_id IS NULL")
	}
	if len(ids) > 0 {
		ors = append(ors, fmt.Sprintf(`q.scope_id IN (
			WITH RECURSIVE tree AS (
				SELECT id FROM scopes WHERE id = ANY(%s)
				UNION
				SELECT s.id FROM scopes s JOIN tree t ON s.parent_id = t.id
			)
			SELECT id FROM tree
		)`, c.arg(pq.Array(ids))))
	}
	c.add("(%s)", strings.Join(ors, " OR "))
	return nil
}

func buildCategories(c *clauses, values []string) error {
	if len(values) == 0 {
		return nil
	}
	ids, sentinel, err := splitIDs(values, CategoryWithout)
	if err != nil {
		return err
	}

	var ors []string
	if sentinel {
		ors = append(ors, "q.category_id IS NULL")
	}
	if len(ids) > 0 {
		ors = append(ors, fmt.Sprintf("q.category_id IN (SELECT id FROM categories WHERE id = ANY(%[1]s) OR parent_id = ANY(%[1]s))",
			c.arg(pq.Array(ids))))
	}
	c.add("(%s)", strings.Join(ors, " OR "))
	return nil
}

// splitIDs parses numeric ids and reports whether the sentinel was present
func splitIDs(values []string, sentinel string) ([]int64, bool, error) {
	var ids []int64
	found := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == sentinel {
			found = true
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %q is not an id", ErrInvalidFilter, v)
		}
		ids = append(ids, id)
	}
	return ids, found, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func dedupe(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

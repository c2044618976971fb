package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/logger"
	"questions/internal/models"
)

const resourceComponent = "component"

// TextEdit is one row of the participatory text editor. Position is the
// 1-based slot the row moves to; the other drafts shift to make room, so
// positions stay unique and contiguous.
type TextEdit struct {
	ID       int64               `json:"id"`
	Position int                 `json:"position"`
	Title    models.Translations `json:"title" validate:"required,max=150"`
	Body     models.Translations `json:"body"`
}

// ParticipatoryTextService manages the drafts of a participatory text
type ParticipatoryTextService struct {
	deps Deps
}

// NewParticipatoryTextService creates a new participatory text service
func NewParticipatoryTextService(deps Deps) *ParticipatoryTextService {
	return &ParticipatoryTextService{deps: deps}
}

// Import turns a markdown document into draft questions authored by the
// organization. Previous drafts of the component are replaced. No versions
// are recorded for the drafts.
func (s *ParticipatoryTextService) Import(ctx context.Context, componentID int64, document string, userID int64) (drafts []*models.Question, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "import_participatory_text", attribute.Int64("component_id", componentID))
	defer func() { end(err) }()

	if !s.deps.Settings.For(componentID).ParticipatoryTextsEnabled {
		return nil, ErrFeatureDisabled
	}
	if strings.TrimSpace(document) == "" {
		return nil, invalid("document", "is required")
	}

	blocks := parseDocument(document)
	if len(blocks) == 0 {
		return nil, invalid("document", "has no content")
	}

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		component, err := s.deps.Components.GetByID(ctx, componentID)
		if err != nil {
			return notFound(err)
		}

		published, err := s.deps.Questions.CountPublished(ctx, componentID)
		if err != nil {
			return err
		}
		if published > 0 {
			return invalid("document", "component already has published questions")
		}

		if _, err := s.deps.Questions.DeleteParticipatoryTextDrafts(ctx, componentID); err != nil {
			return err
		}

		drafts = draftsFromDocument(componentID, component.OrganizationID, s.deps.locale(), blocks)
		for _, q := range drafts {
			if err := s.deps.Questions.Create(ctx, q); err != nil {
				return err
			}
		}

		return s.deps.Trace.Record(ctx, Trace{
			Action:       "import_participatory_text",
			ResourceType: resourceComponent,
			ResourceID:   componentID,
			ComponentID:  &componentID,
			UserID:       userID,
			Extra:        map[string]any{"drafts": len(drafts)},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Participatory text imported",
		"component_id", componentID,
		"drafts", len(drafts),
	)
	return drafts, nil
}

// Update applies the editor rows to the drafts without versioning them.
// Failures are collected per id; when any row fails nothing is kept and an
// EditFailures error is returned.
func (s *ParticipatoryTextService) Update(ctx context.Context, componentID int64, edits []TextEdit) (err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "update_participatory_text",
		attribute.Int64("component_id", componentID),
		attribute.Int("edits", len(edits)),
	)
	defer func() { end(err) }()

	if !s.deps.Settings.For(componentID).ParticipatoryTextsEnabled {
		return ErrFeatureDisabled
	}
	return s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		return s.update(ctx, componentID, edits)
	})
}

func (s *ParticipatoryTextService) update(ctx context.Context, componentID int64, edits []TextEdit) error {
	drafts, err := s.deps.Questions.ListParticipatoryTextDrafts(ctx, componentID)
	if err != nil {
		return err
	}
	byID := make(map[int64]*models.Question, len(drafts))
	for _, q := range drafts {
		byID[q.ID] = q
	}

	failures := EditFailures{}
	valid := make([]*TextEdit, 0, len(edits))
	for i := range edits {
		edit := &edits[i]
		q, ok := byID[edit.ID]
		if !ok {
			failures[edit.ID] = "question not found"
			continue
		}
		if err := validateForm(edit); err != nil {
			failures[edit.ID] = err.Error()
			continue
		}
		if q.ParticipatoryTextLevel == models.LevelArticle && edit.Body.Blank() {
			failures[edit.ID] = "body is required"
			continue
		}
		valid = append(valid, edit)
	}
	if len(failures) > 0 {
		return failures
	}

	for _, edit := range valid {
		q := byID[edit.ID]
		if err := s.deps.Questions.UpdateTitle(ctx, q.ID, edit.Title); err != nil {
			return err
		}
		q.Title = edit.Title
		// sections and sub-sections only carry a label
		if q.ParticipatoryTextLevel == models.LevelArticle {
			if err := s.deps.Questions.UpdateBody(ctx, q.ID, edit.Body); err != nil {
				return err
			}
			q.Body = edit.Body
		}
	}

	return s.renumber(ctx, drafts, valid)
}

// renumber moves every edited row to its target slot, lowest target first,
// and writes positions 1..n for the rows whose position changed.
func (s *ParticipatoryTextService) renumber(ctx context.Context, drafts []*models.Question, edits []*TextEdit) error {
	moves := append([]*TextEdit(nil), edits...)
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Position < moves[j].Position })

	order := append([]*models.Question(nil), drafts...)
	for _, edit := range moves {
		from := -1
		for i, q := range order {
			if q.ID == edit.ID {
				from = i
				break
			}
		}
		to := min(max(edit.Position-1, 0), len(order)-1)
		if from == to {
			continue
		}
		q := order[from]
		order = append(order[:from], order[from+1:]...)
		order = append(order[:to], append([]*models.Question{q}, order[to:]...)...)
	}

	for i, q := range order {
		position := i + 1
		if q.Position != nil && *q.Position == position {
			continue
		}
		if err := s.deps.Questions.UpdatePosition(ctx, q.ID, position); err != nil {
			return err
		}
		q.Position = ptr(position)
	}
	return nil
}

// Publish applies the editor rows and publishes every draft of the
// component. Each question gets exactly one version, which replays its
// title and body from blank.
func (s *ParticipatoryTextService) Publish(ctx context.Context, componentID int64, edits []TextEdit, userID int64) (published []int64, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "publish_participatory_text", attribute.Int64("component_id", componentID))
	defer func() { end(err) }()

	if !s.deps.Settings.For(componentID).ParticipatoryTextsEnabled {
		return nil, ErrFeatureDisabled
	}
	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		if len(edits) > 0 {
			if err := s.update(ctx, componentID, edits); err != nil {
				return err
			}
		}

		drafts, err := s.deps.Questions.ListParticipatoryTextDrafts(ctx, componentID)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			return ErrNothingToPublish
		}

		now := s.deps.now()
		for _, q := range drafts {
			q.PublishedAt = &now
			if err := s.deps.Questions.Update(ctx, q); err != nil {
				return fmt.Errorf("failed to publish question %d: %w", q.ID, err)
			}
			err := s.deps.Trace.Record(ctx, Trace{
				Action:       "publish",
				ResourceType: resourceQuestion,
				ResourceID:   q.ID,
				ComponentID:  &componentID,
				UserID:       userID,
				Changes: models.Changeset{
					"title": {"", q.Title},
					"body":  {"", q.Body},
				},
			})
			if err != nil {
				return err
			}
			published = append(published, q.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Participatory text published",
		"component_id", componentID,
		"questions", len(published),
	)
	return published, nil
}

// Discard deletes every draft of the participatory text
func (s *ParticipatoryTextService) Discard(ctx context.Context, componentID, userID int64) (deleted int64, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "discard_participatory_text", attribute.Int64("component_id", componentID))
	defer func() { end(err) }()

	if !s.deps.Settings.For(componentID).ParticipatoryTextsEnabled {
		return 0, ErrFeatureDisabled
	}

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.deps.Questions.DeleteParticipatoryTextDrafts(ctx, componentID)
		if err != nil {
			return err
		}
		return s.deps.Trace.Record(ctx, Trace{
			Action:       "discard_participatory_text",
			ResourceType: resourceComponent,
			ResourceID:   componentID,
			ComponentID:  &componentID,
			UserID:       userID,
			Extra:        map[string]any{"deleted": deleted},
		})
	})
	return deleted, err
}

// Package cli implements the questionsctl commands.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"questions/internal/config"
	"questions/internal/database"
	"questions/internal/email"
	"questions/internal/logger"
	"questions/internal/notify"
	"questions/internal/repository"
	"questions/internal/service"
	"questions/internal/telemetry"
)

var (
	okStyle   = color.New(color.FgGreen)
	warnStyle = color.New(color.FgYellow)
	failStyle = color.New(color.FgRed)
	boldStyle = color.New(color.Bold)
)

// app is the subset of the server wiring the commands need
type app struct {
	cfg *config.Config
	db  *database.Database

	answers   *service.AnswerService
	texts     *service.ParticipatoryTextService
	metrics   *service.MetricsService
	deliverer *notify.Deliverer
}

// openApp loads the configuration and connects to the database
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(logger.Config{Level: cfg.Log.Level})

	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	components, err := config.LoadComponentSettings(cfg.Components.SettingsFile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	questionRepo := repository.NewQuestionRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)
	tx := database.NewTxRunner(db.DB)
	trace := service.NewTraceabilityService(
		repository.NewVersionRepository(db.DB),
		repository.NewActionLogRepository(db.DB),
	)

	deps := service.Deps{
		Tx:          tx,
		Questions:   questionRepo,
		Assignments: repository.NewValuationAssignmentRepository(db.DB),
		Roles:       repository.NewSpaceRoleRepository(db.DB),
		Components:  repository.NewComponentRepository(db.DB),
		Taxonomy:    repository.NewTaxonomyRepository(db.DB),
		Notes:       repository.NewNoteRepository(db.DB),
		Amendments:  repository.NewAmendmentRepository(db.DB),
		Links:       repository.NewResourceLinkRepository(db.DB),
		Scores:      repository.NewGamificationRepository(db.DB),
		Events:      notify.NewPublisher(notificationRepo),
		Trace:       trace,
		Settings:    components,
		Telemetry:   telemetry.NewCommands(),
		Locale:      cfg.App.DefaultLocale,
	}

	deliverer := notify.NewDeliverer(
		notificationRepo,
		repository.NewUserRepository(db.DB),
		email.NewService(&cfg.Email),
		notify.DeliveryConfig{
			BatchSize:      cfg.Scheduler.DeliveryBatchSize,
			MaxAttempts:    cfg.Scheduler.DeliveryMaxAttempts,
			MaxElapsedTime: cfg.Scheduler.DeliveryMaxElapsedTime,
			Concurrency:    cfg.Scheduler.DeliveryConcurrency,
			Lease:          cfg.Scheduler.DeliveryLease,
		},
	)

	return &app{
		cfg:       cfg,
		db:        db,
		answers:   service.NewAnswerService(deps),
		texts:     service.NewParticipatoryTextService(deps),
		metrics:   service.NewMetricsService(repository.NewMetricsRepository(db.DB)),
		deliverer: deliverer,
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}

// parseIDs accepts ids as separate arguments or comma separated
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

package updater

import (
	"context"
	"fmt"
	"time"

	"netcop-updater/internal/database"
	"netcop-updater/internal/models"
	"netcop-updater/internal/services/notify"
	"netcop-updater/internal/services/tclass"
	"netcop-updater/internal/services/tracker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Downloader fetches the full signature catalog
type Downloader interface {
	Download(ctx context.Context) ([]models.ClassUpdate, error)
}

// Result summarizes one check and update cycle
type Result struct {
	RunID            string
	AppliedVersion   string
	AvailableVersion string
	Updated          bool
	Changed          int
}

// Service runs the check, download, reconcile and commit cycle
type Service struct {
	tracker    *tracker.Service
	catalog    Downloader
	store      *database.Store
	reconciler *tclass.Service
	notifier   notify.Notifier
	logger     *zap.Logger
}

// New creates a new updater
func New(versions *tracker.Service, catalog Downloader, store *database.Store,
	reconciler *tclass.Service, notifier notify.Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		tracker:    versions,
		catalog:    catalog,
		store:      store,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
	}
}

// Run performs one cycle. The version marker only moves forward when the
// whole catalog has been committed.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	logger := s.logger.With(zap.String("run_id", result.RunID))

	applied, available, update, err := s.tracker.Check(ctx)
	result.AppliedVersion = applied
	if err != nil {
		logger.Error("Version check failed", zap.Error(err))
		return result, err
	}
	result.AvailableVersion = available

	if !update {
		logger.Info("Signatures are up to date", zap.String("version", short(applied)))
		return result, nil
	}

	logger.Info("Updating signatures",
		zap.String("from", short(applied)),
		zap.String("to", short(available)))

	classes, err := s.catalog.Download(ctx)
	if err != nil {
		logger.Error("Catalog download failed", zap.Error(err))
		return result, fmt.Errorf("failed to download catalog: %w", err)
	}

	var changed int
	err = s.store.WithTx(ctx, func(repo *database.Repository) error {
		var applyErr error
		changed, applyErr = s.reconciler.Apply(ctx, repo, classes)
		return applyErr
	})
	if err != nil {
		logger.Error("Catalog rolled back", zap.Error(err))
		return result, fmt.Errorf("failed to apply catalog: %w", err)
	}

	s.tracker.SetAppliedVersion(available)
	result.AppliedVersion = available
	result.Updated = true
	result.Changed = changed

	event := notify.Event{
		RunID:     result.RunID,
		Version:   available,
		Changed:   changed,
		AppliedAt: time.Now().UTC(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		logger.Warn("Failed to notify update", zap.Error(err))
	}

	logger.Info("Update successful",
		zap.String("version", short(available)),
		zap.Int("classes", len(classes)),
		zap.Int("changed", changed))
	return result, nil
}

func short(v string) string {
	if len(v) > 6 {
		return v[:6]
	}
	return v
}

package tclass

import (
	"context"
	"fmt"

	"netcop-updater/internal/models"

	"go.uber.org/zap"
)

// Repository is the storage the reconciler works through. Implementations
// are expected to run inside one transaction for a whole catalog.
type Repository interface {
	FindClass(ctx context.Context, id int) (*models.TrafficClass, error)
	CreateClass(ctx context.Context, class *models.TrafficClass) error
	UpdateClass(ctx context.Context, class *models.TrafficClass) error

	ListSubnets(ctx context.Context, classID int, group models.Group) ([]models.Subnet, error)
	AddSubnet(ctx context.Context, classID int, group models.Group, subnet models.Subnet) error
	RemoveSubnet(ctx context.Context, classID int, group models.Group, subnet models.Subnet) error

	ListPorts(ctx context.Context, classID int, group models.Group) ([]models.Port, error)
	AddPort(ctx context.Context, classID int, group models.Group, port models.Port) error
	RemovePort(ctx context.Context, classID int, group models.Group, port models.Port) error
}

// Service reconciles downloaded traffic class definitions into storage
type Service struct {
	logger *zap.Logger
}

// New creates a new traffic class reconciler
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Apply upserts every class of the catalog and returns how many classes
// were created or changed. The first error aborts the catalog; the caller
// is expected to roll back the surrounding transaction.
func (s *Service) Apply(ctx context.Context, repo Repository, catalog []models.ClassUpdate) (int, error) {
	changed := 0
	for i := range catalog {
		update := &catalog[i]
		ok, err := s.ApplyClass(ctx, repo, update)
		if err != nil {
			return changed, fmt.Errorf("failed to apply catalog entry %d: %w", i, err)
		}
		if ok {
			changed++
		}
	}

	s.logger.Info("Catalog applied",
		zap.Int("classes", len(catalog)),
		zap.Int("changed", changed))
	return changed, nil
}

// ApplyClass upserts a single class. It reports whether the class was
// created or modified. User customized classes are left untouched.
func (s *Service) ApplyClass(ctx context.Context, repo Repository, update *models.ClassUpdate) (bool, error) {
	if update.ID == nil {
		return false, models.ErrMissingID
	}
	id := *update.ID

	members, err := update.ParseMembers()
	if err != nil {
		return false, fmt.Errorf("class %d: %w", id, err)
	}

	incoming := &models.TrafficClass{
		ID:          id,
		Name:        update.Name,
		Description: update.Description,
		Kind:        models.KindSystem,
		Active:      update.IsActive(),
	}

	current, err := repo.FindClass(ctx, id)
	if err != nil {
		return false, err
	}

	if current == nil {
		if err := repo.CreateClass(ctx, incoming); err != nil {
			return false, err
		}
		if _, err := s.syncMembers(ctx, repo, id, members); err != nil {
			return false, err
		}
		s.logger.Debug("Traffic class created", zap.Int("id", id), zap.String("name", incoming.Name))
		return true, nil
	}

	if current.Kind != models.KindSystem {
		s.logger.Debug("Skipping user customized traffic class",
			zap.Int("id", id),
			zap.Stringer("kind", current.Kind))
		return false, nil
	}

	scalarsChanged := current.Name != incoming.Name ||
		current.Description != incoming.Description ||
		current.Active != incoming.Active

	if err := repo.UpdateClass(ctx, incoming); err != nil {
		return false, err
	}

	membersChanged, err := s.syncMembers(ctx, repo, id, members)
	if err != nil {
		return false, err
	}

	if scalarsChanged || membersChanged {
		s.logger.Debug("Traffic class updated",
			zap.Int("id", id),
			zap.Bool("scalars", scalarsChanged),
			zap.Bool("members", membersChanged))
		return true, nil
	}
	return false, nil
}

// syncMembers brings the four membership collections of a class in line
// with the incoming lists, reporting whether anything was added or removed
func (s *Service) syncMembers(ctx context.Context, repo Repository, classID int, m *models.Members) (bool, error) {
	changed := false

	subnets := []struct {
		group    models.Group
		incoming []models.Subnet
	}{
		{models.GroupOutside, m.SubnetsOutside},
		{models.GroupInside, m.SubnetsInside},
	}
	for _, c := range subnets {
		existing, err := repo.ListSubnets(ctx, classID, c.group)
		if err != nil {
			return false, err
		}
		n, err := applyDiff(ctx, existing, c.incoming,
			func(ctx context.Context, v models.Subnet) error { return repo.AddSubnet(ctx, classID, c.group, v) },
			func(ctx context.Context, v models.Subnet) error { return repo.RemoveSubnet(ctx, classID, c.group, v) })
		if err != nil {
			return false, err
		}
		changed = changed || n > 0
	}

	ports := []struct {
		group    models.Group
		incoming []models.Port
	}{
		{models.GroupOutside, m.PortsOutside},
		{models.GroupInside, m.PortsInside},
	}
	for _, c := range ports {
		existing, err := repo.ListPorts(ctx, classID, c.group)
		if err != nil {
			return false, err
		}
		n, err := applyDiff(ctx, existing, c.incoming,
			func(ctx context.Context, v models.Port) error { return repo.AddPort(ctx, classID, c.group, v) },
			func(ctx context.Context, v models.Port) error { return repo.RemovePort(ctx, classID, c.group, v) })
		if err != nil {
			return false, err
		}
		changed = changed || n > 0
	}

	return changed, nil
}

// applyDiff removes stale members first, then adds the missing ones.
// It returns the number of operations performed.
func applyDiff[T comparable](ctx context.Context, existing, incoming []T,
	add, remove func(context.Context, T) error) (int, error) {
	toAdd, toRemove := Diff(existing, incoming)

	for _, v := range toRemove {
		if err := remove(ctx, v); err != nil {
			return 0, err
		}
	}
	for _, v := range toAdd {
		if err := add(ctx, v); err != nil {
			return 0, err
		}
	}
	return len(toAdd) + len(toRemove), nil
}

// Diff computes the set differences incoming-existing (add) and
// existing-incoming (remove). Duplicates are collapsed; adds keep the
// incoming order and removes keep the existing order.
func Diff[T comparable](existing, incoming []T) (add, remove []T) {
	have := make(map[T]struct{}, len(existing))
	for _, v := range existing {
		have[v] = struct{}{}
	}
	want := make(map[T]struct{}, len(incoming))
	for _, v := range incoming {
		want[v] = struct{}{}
	}

	seen := make(map[T]struct{}, len(incoming))
	for _, v := range incoming {
		if _, ok := have[v]; ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		add = append(add, v)
	}

	seen = make(map[T]struct{}, len(existing))
	for _, v := range existing {
		if _, ok := want[v]; ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		remove = append(remove, v)
	}
	return add, remove
}

package tracker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	// VersionLength is the length of a SHA-256 hex digest
	VersionLength      = 64
	DefaultVersionFile = "/var/lib/netcop/version"
)

// VersionSource reports the latest published catalog version
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// Service tracks the catalog version applied locally against the one
// published by the signature repository
type Service struct {
	path    string
	source  VersionSource
	logger  *zap.Logger
	applied string
}

// New creates a version tracker storing its marker at path
func New(path string, source VersionSource, logger *zap.Logger) *Service {
	if path == "" {
		path = DefaultVersionFile
	}
	return &Service{
		path:   path,
		source: source,
		logger: logger,
	}
}

// Path returns the location of the version marker
func (s *Service) Path() string {
	return s.path
}

// AppliedVersion reads the version marker. It reports false when the marker
// is missing, unreadable or empty, which forces an update.
func (s *Service) AppliedVersion() (string, bool) {
	f, err := os.Open(s.path)
	if err != nil {
		s.logger.Warn("Could not read version file", zap.String("file", s.path), zap.Error(err))
		return "", false
	}
	defer f.Close()

	buf := make([]byte, VersionLength)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		s.logger.Warn("Could not read version file", zap.String("file", s.path), zap.Error(err))
		return "", false
	}

	version := normalize(string(buf[:n]))
	if version == "" {
		s.logger.Warn("Version file is empty", zap.String("file", s.path))
		return "", false
	}

	s.applied = version
	return version, true
}

// SetAppliedVersion persists v as the applied version. Write failures are
// logged as critical and not returned.
func (s *Service) SetAppliedVersion(v string) {
	v = normalize(v)
	s.applied = v
	if err := s.write(v); err != nil {
		s.logger.Error("Could not write version file",
			zap.String("file", s.path),
			zap.String("severity", "critical"),
			zap.Error(err))
	}
}

// Applied returns the in-memory applied version
func (s *Service) Applied() string {
	return s.applied
}

func (s *Service) write(v string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".version-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod version file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace version file: %w", err)
	}
	return nil
}

// AvailableVersion asks the signature repository for its latest version
func (s *Service) AvailableVersion(ctx context.Context) (string, error) {
	v, err := s.source.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get available version: %w", err)
	}
	return normalize(v), nil
}

// normalize reduces a version to the form stored in the marker
func normalize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > VersionLength {
		v = strings.TrimSpace(v[:VersionLength])
	}
	return v
}

// Check returns the applied version (empty when missing), the available
// version and whether they differ
func (s *Service) Check(ctx context.Context) (applied, available string, update bool, err error) {
	applied, ok := s.AppliedVersion()
	available, err = s.AvailableVersion(ctx)
	if err != nil {
		return applied, "", false, err
	}

	s.logger.Debug("Version check",
		zap.String("available", short(available)),
		zap.String("applied", short(applied)))
	return applied, available, !ok || applied != available, nil
}

// UpdateAvailable reports whether the published version differs from the
// applied one. A missing applied version always differs.
func (s *Service) UpdateAvailable(ctx context.Context) (bool, error) {
	_, _, update, err := s.Check(ctx)
	return update, err
}

func short(v string) string {
	if len(v) > 6 {
		return v[:6]
	}
	return v
}

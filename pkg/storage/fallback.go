package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Location records which disk holds a file.
type Location string

const (
	LocationPrimary  Location = "primary"
	LocationFallback Location = "fallback"
)

// FallbackStorage writes to the mounted disk and falls back to a local directory when the mount is unusable.
type FallbackStorage struct {
	primary  *LocalStorage
	fallback *LocalStorage
	logger   *zap.Logger
}

// NewFallbackStorage prepares both directories. An unusable primary is tolerated; an unusable fallback is not.
func NewFallbackStorage(primaryDir, fallbackDir string, logger *zap.Logger) (*FallbackStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback, err := NewLocalStorage(fallbackDir)
	if err != nil {
		return nil, fmt.Errorf("fallback storage: %w", err)
	}
	primary, err := NewLocalStorage(primaryDir)
	if err != nil {
		logger.Warn("primary document disk unavailable, using fallback",
			zap.String("primary", primaryDir),
			zap.String("fallback", fallbackDir),
			zap.Error(err),
		)
		primary = nil
	}
	return &FallbackStorage{primary: primary, fallback: fallback, logger: logger}, nil
}

// Save writes name to the primary disk, or to the fallback when the primary write fails.
func (s *FallbackStorage) Save(name string, data []byte) (Location, string, error) {
	if s.primary != nil {
		path, err := s.primary.Save(name, data)
		if err == nil {
			return LocationPrimary, path, nil
		}
		if errors.Is(err, ErrInvalidName) {
			return "", "", err
		}
		s.logger.Warn("primary document write failed, using fallback", zap.String("file", name), zap.Error(err))
	}
	path, err := s.fallback.Save(name, data)
	if err != nil {
		return "", "", fmt.Errorf("write %s to fallback: %w", name, err)
	}
	return LocationFallback, path, nil
}

// Open looks in the recorded location first and then the other disk.
func (s *FallbackStorage) Open(name string, preferred Location) (*os.File, Location, error) {
	var lastErr error = fs.ErrNotExist
	for _, loc := range s.order(preferred) {
		store := s.store(loc)
		if store == nil {
			continue
		}
		file, err := store.Open(name)
		if err == nil {
			return file, loc, nil
		}
		if errors.Is(err, ErrInvalidName) {
			return nil, "", err
		}
		lastErr = err
	}
	return nil, "", lastErr
}

// Read returns the file content from whichever disk holds it.
func (s *FallbackStorage) Read(name string, preferred Location) ([]byte, error) {
	var lastErr error = fs.ErrNotExist
	for _, loc := range s.order(preferred) {
		store := s.store(loc)
		if store == nil {
			continue
		}
		data, err := store.Read(name)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrInvalidName) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Delete removes name from both disks. Missing files are not an error.
func (s *FallbackStorage) Delete(name string) error {
	var errs []error
	for _, store := range []*LocalStorage{s.primary, s.fallback} {
		if store == nil {
			continue
		}
		if err := store.Delete(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PrimaryAvailable reports whether the mounted disk was usable at startup.
func (s *FallbackStorage) PrimaryAvailable() bool {
	return s.primary != nil
}

func (s *FallbackStorage) order(preferred Location) []Location {
	if preferred == LocationFallback {
		return []Location{LocationFallback, LocationPrimary}
	}
	return []Location{LocationPrimary, LocationFallback}
}

func (s *FallbackStorage) store(loc Location) *LocalStorage {
	if loc == LocationFallback {
		return s.fallback
	}
	return s.primary
}

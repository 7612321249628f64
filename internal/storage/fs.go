/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// FilesystemStore keeps plan documents as files in one directory.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-based store rooted at rootDir.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) *FilesystemStore {
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "storage_fs").Logger(),
	}
}

func (s *FilesystemStore) path(name string) string {
	return filepath.Join(s.rootDir, name+DocumentExt)
}

// Put writes the document atomically by renaming a temporary file.
func (s *FilesystemStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.rootDir, 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp, err := os.CreateTemp(s.rootDir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		telemetry.StorageOpsTotal.WithLabelValues(string(BackendFS), "put", "error").Inc()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		os.Remove(tmp.Name())
		telemetry.StorageOpsTotal.WithLabelValues(string(BackendFS), "put", "error").Inc()
		return fmt.Errorf("rename file: %w", err)
	}
	telemetry.StorageOpsTotal.WithLabelValues(string(BackendFS), "put", "ok").Inc()
	s.logger.Debug().Str("name", name).Int("bytes", len(data)).Msg("filesystem storage: plan stored")
	return nil
}

// Get reads a document.
func (s *FilesystemStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		telemetry.StorageOpsTotal.WithLabelValues(string(BackendFS), "get", "error").Inc()
		return nil, fmt.Errorf("read file: %w", err)
	}
	telemetry.StorageOpsTotal.WithLabelValues(string(BackendFS), "get", "ok").Inc()
	return data, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *FilesystemStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	s.logger.Debug().Str("name", name).Msg("filesystem storage: plan deleted")
	return nil
}

// List returns the stored document names in lexical order.
func (s *FilesystemStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.rootDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, DocumentExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, DocumentExt))
	}
	sort.Strings(names)
	return names, nil
}

// CheckAccess verifies the storage directory exists and is accessible.
func (s *FilesystemStore) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("plan directory does not exist: %s", s.rootDir)
		}
		return fmt.Errorf("cannot access plan directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plan directory is not a directory: %s", s.rootDir)
	}
	return nil
}

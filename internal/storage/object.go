/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound    = errors.New("plan document not found")
	ErrInvalidName = errors.New("invalid plan document name")
)

// ObjectStore abstracts storage of named plan documents.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	CheckAccess(ctx context.Context) error
}

// Backend names an ObjectStore implementation.
type Backend string

const (
	BackendFS Backend = "fs"
	BackendS3 Backend = "s3"
	BackendDB Backend = "db"
)

// DocumentExt is the extension of stored plan documents.
const DocumentExt = ".yaml"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName rejects names that cannot be stored safely under every
// backend.
func ValidateName(name string) error {
	if !validName.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

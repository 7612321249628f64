/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduleio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

const tracerName = "queueplanner/scheduleio"

// Codec reads and writes plan documents.
type Codec struct {
	logger zerolog.Logger
	bus    *events.Bus
}

// NewCodec creates a codec. bus may be nil.
func NewCodec(logger zerolog.Logger, bus *events.Bus) *Codec {
	return &Codec{
		logger: logger.With().Str("component", "scheduleio").Logger(),
		bus:    bus,
	}
}

// ReadResult describes a document after migration.
type ReadResult struct {
	State          schedule.State
	Version        int
	Migrations     int
	DigestVerified bool
}

// Read decodes, verifies and migrates a document without resolving it
// against a model.
func (c *Codec) Read(ctx context.Context, r io.Reader) (*ReadResult, error) {
	_, span := telemetry.StartSpan(ctx, tracerName, "scheduleio.Read")
	defer span.End()

	res, err := c.read(r)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.DocumentOpsTotal.WithLabelValues("read", "error").Inc()
		return nil, err
	}
	telemetry.AddSpanAttributes(span, map[string]any{
		"document.version":    res.Version,
		"document.migrations": res.Migrations,
	})
	telemetry.DocumentOpsTotal.WithLabelValues("read", "ok").Inc()
	return res, nil
}

func (c *Codec) read(r io.Reader) (*ReadResult, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	res := &ReadResult{Version: doc.Version}

	if doc.Digest != "" {
		sum, err := Digest(doc.Schedule)
		if err != nil {
			return nil, err
		}
		res.DigestVerified = sum == doc.Digest
		if !res.DigestVerified {
			c.logger.Warn().Str("stored", doc.Digest).Str("computed", sum).Msg("plan document digest mismatch")
		}
	}

	if res.Migrations, err = Migrate(doc, c.logger); err != nil {
		return nil, err
	}
	d, err := typed(doc.Schedule)
	if err != nil {
		return nil, err
	}
	if res.State, err = d.decodeState(); err != nil {
		return nil, err
	}
	return res, nil
}

// Load reads a document and restores it against model. No schedule is
// returned on any error. Allocs that cannot be restored are reported as
// issues and omitted.
func (c *Codec) Load(ctx context.Context, r io.Reader, model *models.MiniModel, opts schedule.Options) (*schedule.Schedule, []schedule.RestoreIssue, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "scheduleio.Load")
	defer span.End()

	res, err := c.Read(ctx, r)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.DocumentOpsTotal.WithLabelValues("load", "error").Inc()
		return nil, nil, fmt.Errorf("load plan: %w", err)
	}
	s, issues, err := schedule.Restore(model, res.State, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.DocumentOpsTotal.WithLabelValues("load", "error").Inc()
		return nil, nil, fmt.Errorf("load plan: %w", err)
	}
	telemetry.DocumentOpsTotal.WithLabelValues("load", "ok").Inc()

	c.logger.Info().
		Str("plan", s.Name()).
		Int("version", res.Version).
		Int("migrations", res.Migrations).
		Int("variants", len(res.State.Variants)).
		Int("issues", len(issues)).
		Msg("plan loaded")
	c.bus.Publish(events.EventPlanLoaded, events.Payload{
		"name":       s.Name(),
		"version":    res.Version,
		"migrations": res.Migrations,
		"issues":     len(issues),
	})
	return s, issues, nil
}

// Encode writes st as a current-version document.
func Encode(w io.Writer, st schedule.State) error {
	d := encodeState(st)
	payload, err := untyped(d)
	if err != nil {
		return err
	}
	sum, err := Digest(payload)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(envelope{Version: CurrentVersion, Digest: sum, Schedule: d}); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

// Save writes s to w and marks it clean.
func (c *Codec) Save(ctx context.Context, w io.Writer, s *schedule.Schedule) error {
	_, span := telemetry.StartSpan(ctx, tracerName, "scheduleio.Save")
	defer span.End()

	var buf bytes.Buffer
	if err := Encode(&buf, s.State()); err != nil {
		telemetry.RecordError(span, err)
		telemetry.DocumentOpsTotal.WithLabelValues("save", "error").Inc()
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		telemetry.RecordError(span, err)
		telemetry.DocumentOpsTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("write plan: %w", err)
	}
	s.MarkClean()
	telemetry.DocumentOpsTotal.WithLabelValues("save", "ok").Inc()

	name := s.Name()
	c.logger.Info().Str("plan", name).Int("bytes", buf.Len()).Msg("plan saved")
	c.bus.Publish(events.EventPlanSaved, events.Payload{"name": name, "bytes": buf.Len()})
	return nil
}

// Upgrade rewrites the document in r at CurrentVersion without a model.
// It returns the version the document was read at.
func (c *Codec) Upgrade(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	res, err := c.Read(ctx, r)
	if err != nil {
		return 0, err
	}
	if err := Encode(w, res.State); err != nil {
		return res.Version, err
	}
	return res.Version, nil
}

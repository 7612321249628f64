/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner wires configuration into the collaborators a plan needs:
// document storage, the model catalogue, solver caching and the laser
// clearance service.
package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/queueplanner/internal/cache"
	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/db"
	"github.com/friendsincode/queueplanner/internal/eventbus"
	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/lch"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/scheduleio"
	"github.com/friendsincode/queueplanner/internal/solver"
	"github.com/friendsincode/queueplanner/internal/storage"
)

// ErrNoSite is returned when the catalogue is used without a configured site.
var ErrNoSite = errors.New("no site configured")

// Planner owns the long-lived collaborators of a planning session.
type Planner struct {
	cfg    *config.Config
	logger zerolog.Logger

	db      *gorm.DB
	store   storage.ObjectStore
	cache   *cache.Cache
	shutter *lch.Client
	bus     *events.Bus
	codec   *scheduleio.Codec

	closers []func() error
}

// Open connects every configured backend. The database is only opened
// when documents or the model catalogue live there.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Planner, error) {
	p := &Planner{
		cfg:    cfg,
		logger: logger.With().Str("component", "planner").Logger(),
		bus:    events.NewBus(),
	}
	p.codec = scheduleio.NewCodec(logger, p.bus)

	if cfg.StorageBackend == config.StorageDB || cfg.ModelPath == "" {
		database, err := db.Connect(cfg)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() error { return db.Close(database) })
		if err := db.Migrate(database); err != nil {
			_ = p.Close()
			return nil, err
		}
		p.db = database
	}

	store, err := storage.Open(ctx, cfg, p.db, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.store = store

	if cfg.CacheEnabled {
		c, err := cache.New(cache.Config{
			RedisAddr:      cfg.RedisAddr,
			RedisPassword:  cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			UnionTTL:       cache.DefaultUnionTTL,
			DisableOnError: true,
		}, logger)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
		p.cache = c
		p.closers = append(p.closers, c.Close)
	} else {
		p.cache = cache.NewDisabled(logger)
	}

	if cfg.LTTSURL != "" {
		p.shutter = lch.NewClient(cfg.LTTSURL, cfg.LTTSTimeout, logger)
	}

	p.startRelay(ctx)
	return p, nil
}

// startRelay shares plan events with other nodes. A relay that cannot
// connect leaves the planner on its local bus.
func (p *Planner) startRelay(ctx context.Context) {
	transport, err := eventbus.Open(ctx, p.cfg, p.logger)
	if err != nil {
		p.logger.Warn().Err(err).Str("relay", p.cfg.EventRelay).Msg("event relay unavailable, using local events only")
		return
	}
	if transport == nil {
		return
	}
	relay := eventbus.NewRelay(p.bus, transport, p.cfg.NodeID, p.logger)
	if err := relay.Start(); err != nil {
		p.logger.Warn().Err(err).Msg("event relay failed to start")
		_ = transport.Close()
		return
	}
	p.closers = append(p.closers, relay.Stop)
}

// Close releases owned resources in reverse order.
func (p *Planner) Close() error {
	var firstErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

// DB returns the database connection, or nil when none was needed.
func (p *Planner) DB() *gorm.DB { return p.db }

// Bus returns the event bus plans publish on.
func (p *Planner) Bus() *events.Bus { return p.bus }

// Store returns the plan document store.
func (p *Planner) Store() storage.ObjectStore { return p.store }

// Codec returns the document codec.
func (p *Planner) Codec() *scheduleio.Codec { return p.codec }

// Catalog returns the model catalogue, or nil when no database is open.
func (p *Planner) Catalog() *models.CatalogStore {
	if p.db == nil {
		return nil
	}
	return models.NewCatalogStore(p.db, p.logger)
}

// Suite returns the solver suite for site: astronomical solvers, memoised
// in Redis when the cache is up, with laser closures when configured.
func (p *Planner) Suite(site models.Site) solver.Suite {
	var shutter solver.ShutterOverlap
	if p.shutter != nil {
		shutter = p.shutter
	}
	suite := solver.AstroSuite(site, shutter)
	if p.cache.IsAvailable() {
		suite = solver.WithCache(suite, site, p.cache, p.logger)
	}
	return suite
}

// Options returns the schedule options for a plan at site.
func (p *Planner) Options(site models.Site) schedule.Options {
	return schedule.Options{Suite: p.Suite(site), Bus: p.bus, Logger: p.logger}
}

// LoadModel reads the mini-model from the configured YAML file, or from
// the catalogue when no file is set.
func (p *Planner) LoadModel(ctx context.Context) (*models.MiniModel, error) {
	if p.cfg.ModelPath != "" {
		f, err := os.Open(p.cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("open model: %w", err)
		}
		defer f.Close()
		m, err := models.LoadModelYAML(f)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", p.cfg.ModelPath, err)
		}
		if p.cfg.Site != "" && m.Site() != p.cfg.Site {
			return nil, fmt.Errorf("model %s is for %s, configured site is %s", p.cfg.ModelPath, m.Site(), p.cfg.Site)
		}
		return m, nil
	}
	if p.cfg.Site == "" {
		return nil, fmt.Errorf("load model from catalogue: %w", ErrNoSite)
	}
	return p.Catalog().Load(ctx, p.cfg.Site)
}

// LoadPlan reads the named document and restores it against model.
func (p *Planner) LoadPlan(ctx context.Context, name string, model *models.MiniModel) (*schedule.Schedule, []schedule.RestoreIssue, error) {
	data, err := p.store.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return p.codec.Load(ctx, bytes.NewReader(data), model, p.Options(model.Site()))
}

// SavePlan encodes s and stores it under name.
func (p *Planner) SavePlan(ctx context.Context, name string, s *schedule.Schedule) error {
	var buf bytes.Buffer
	if err := p.codec.Save(ctx, &buf, s); err != nil {
		return err
	}
	if err := p.store.Put(ctx, name, buf.Bytes()); err != nil {
		return err
	}
	p.bus.Publish(events.EventPlanStored, events.Payload{"document": name, "plan": s.Name()})
	return nil
}

// LoadShutterNight fetches laser closures for the night starting at t.
// It is a no-op when no laser clearance service is configured.
func (p *Planner) LoadShutterNight(ctx context.Context, t time.Time) error {
	if p.shutter == nil {
		return nil
	}
	return p.shutter.Load(ctx, t)
}

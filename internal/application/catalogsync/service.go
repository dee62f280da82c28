// Package catalogsync mirrors the admin catalog into the local store.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrSyncInProgress is returned when SyncOnce is called while a sync is running
var ErrSyncInProgress = errors.New("catalogsync: sync already in progress")

// Entity labels used in reports and metrics
const (
	EntityCategory = "category"
	EntityProduct  = "product"
)

// SyncReport summarizes one catalog sync
type SyncReport struct {
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"duration"`
	CategoriesFetched int           `json:"categoriesFetched"`
	CategoriesSynced  int           `json:"categoriesSynced"`
	CategoriesSkipped int           `json:"categoriesSkipped"`
	ProductsFetched   int           `json:"productsFetched"`
	ProductsSynced    int           `json:"productsSynced"`
	ProductsSkipped   int           `json:"productsSkipped"`
	MirroredProducts  int64         `json:"mirroredProducts"`
}

// Metrics records catalog sync results
type Metrics interface {
	CatalogItemsSynced(ctx context.Context, entity string, synced, skipped int)
}

type nopMetrics struct{}

func (nopMetrics) CatalogItemsSynced(context.Context, string, int, int) {}

// Service fetches the admin catalog and upserts it into the local mirror.
// Only one sync runs at a time.
type Service struct {
	source   integration.CatalogSource
	mirror   catalog.MirrorRepository
	validate *validator.Validate
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time

	running sync.Mutex
	mu      sync.Mutex
	last    *SyncReport
}

// Option is a functional option for Service
type Option func(*Service)

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the clock used for SyncedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new catalog sync service
func NewService(source integration.CatalogSource, mirror catalog.MirrorRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		source:   source,
		mirror:   mirror,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  nopMetrics{},
		logger:   logger.With(zap.String("component", "catalog_sync")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastReport returns the report of the last successful sync, if any
func (s *Service) LastReport() *SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// SyncOnce fetches categories then products and upserts both into the
// mirror. Items failing validation are counted and skipped.
func (s *Service) SyncOnce(ctx context.Context) (SyncReport, error) {
	if !s.running.TryLock() {
		return SyncReport{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	ctx, span := telemetry.StartServiceSpan(ctx, "catalog_sync", "sync_once")
	defer span.End()

	started := s.now()
	report := SyncReport{StartedAt: started.UTC()}
	syncedAt := started.UTC()

	remoteCategories, err := s.source.ListCategories(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return report, fmt.Errorf("fetch categories: %w", err)
	}
	categories, known := s.convertCategories(remoteCategories, syncedAt)
	report.CategoriesFetched = len(remoteCategories)
	report.CategoriesSkipped = len(remoteCategories) - len(categories)

	if report.CategoriesSynced, err = s.mirror.UpsertCategories(ctx, categories); err != nil {
		telemetry.RecordError(span, err)
		return report, fmt.Errorf("upsert categories: %w", err)
	}
	s.metrics.CatalogItemsSynced(ctx, EntityCategory, report.CategoriesSynced, report.CategoriesSkipped)

	remoteProducts, err := s.source.ListProducts(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return report, fmt.Errorf("fetch products: %w", err)
	}
	products := s.convertProducts(remoteProducts, known, syncedAt)
	report.ProductsFetched = len(remoteProducts)
	report.ProductsSkipped = len(remoteProducts) - len(products)

	if report.ProductsSynced, err = s.mirror.UpsertProducts(ctx, products); err != nil {
		telemetry.RecordError(span, err)
		return report, fmt.Errorf("upsert products: %w", err)
	}
	s.metrics.CatalogItemsSynced(ctx, EntityProduct, report.ProductsSynced, report.ProductsSkipped)

	if report.MirroredProducts, err = s.mirror.CountProducts(ctx); err != nil {
		s.logger.Warn("Failed to count mirrored products", zap.Error(err))
	}
	report.Duration = s.now().Sub(started)

	telemetry.SetAttributes(span,
		"catalog.categories_synced", report.CategoriesSynced,
		"catalog.products_synced", report.ProductsSynced,
	)
	s.logger.Info("Catalog sync completed",
		zap.Int("categories_synced", report.CategoriesSynced),
		zap.Int("categories_skipped", report.CategoriesSkipped),
		zap.Int("products_synced", report.ProductsSynced),
		zap.Int("products_skipped", report.ProductsSkipped),
		zap.Duration("duration", report.Duration),
	)

	s.mu.Lock()
	last := report
	s.last = &last
	s.mu.Unlock()
	return report, nil
}

// convertCategories validates and converts categories, returning the set of
// accepted external ids
func (s *Service) convertCategories(remote []integration.RemoteCategory, syncedAt time.Time) ([]catalog.Category, map[int64]struct{}) {
	out := make([]catalog.Category, 0, len(remote))
	known := make(map[int64]struct{}, len(remote))

	for i := range remote {
		rc := &remote[i]
		if err := s.validate.Struct(rc); err != nil {
			s.skip(EntityCategory, rc.ID, err)
			continue
		}
		c, err := catalog.NewCategory(rc.ID, rc.Name)
		if err != nil {
			s.skip(EntityCategory, rc.ID, err)
			continue
		}
		c.Description = rc.Description
		c.ParentExternalID = rc.ParentID
		c.SortOrder = rc.SortOrder
		if rc.Active != nil {
			c.Active = *rc.Active
		}
		c.SyncedAt = syncedAt

		out = append(out, *c)
		known[c.ExternalID] = struct{}{}
	}
	return out, known
}

func (s *Service) convertProducts(remote []integration.RemoteProduct, categories map[int64]struct{}, syncedAt time.Time) []catalog.Product {
	out := make([]catalog.Product, 0, len(remote))

	for i := range remote {
		rp := &remote[i]
		if err := s.validate.Struct(rp); err != nil {
			s.skip(EntityProduct, rp.ID, err)
			continue
		}
		p, err := catalog.NewProduct(rp.ID, rp.Name, rp.Price)
		if err != nil {
			s.skip(EntityProduct, rp.ID, err)
			continue
		}
		p.SKU = rp.SKU
		p.Description = rp.Description
		p.ImageURL = rp.ImageURL
		p.StockQuantity = rp.StockQuantity
		if rp.Active != nil {
			p.Active = *rp.Active
		}
		if rp.CategoryID != nil {
			if _, ok := categories[*rp.CategoryID]; ok {
				id := *rp.CategoryID
				p.CategoryExternalID = &id
			} else {
				s.logger.Debug("Product references unknown category, mirroring without category",
					zap.Int64("product_id", rp.ID),
					zap.Int64("category_id", *rp.CategoryID),
				)
			}
		}
		p.SyncedAt = syncedAt

		out = append(out, *p)
	}
	return out
}

func (s *Service) skip(entity string, id int64, err error) {
	fields := []zap.Field{zap.String("entity", entity), zap.Int64("external_id", id)}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		invalid := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			invalid = append(invalid, fe.Field()+":"+fe.Tag())
		}
		fields = append(fields, zap.Strings("invalid_fields", invalid))
	} else {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Warn("Skipping invalid catalog item", fields...)
}

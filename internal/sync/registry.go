// Файл: internal/sync/registry.go
package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"

	"github.com/google/uuid"

	"business-api/internal/tenancy"
	apperrors "business-api/pkg/errors"
)

// Report - результат синхронизации без привязки к типу сущности, для API и CLI.
type Report struct {
	RunID    uuid.UUID                     `json:"run_id,omitempty"`
	Resource string                        `json:"resource"`
	Items    []ReportItem                  `json:"items"`
	Rejected []*apperrors.DataQualityError `json:"rejected"`
	Created  int                           `json:"created"`
	Updated  int                           `json:"updated"`
	Warnings []string                      `json:"warnings,omitempty"`
}

type ReportItem struct {
	ID             int64          `json:"id"`
	ExternalID     string         `json:"external_id"`
	BusinessKey    string         `json:"business_key"`
	Classification Classification `json:"classification"`
	Entity         interface{}    `json:"entity"`
}

// Synchronizer - синхронизация одного ресурса ERP.
type Synchronizer interface {
	Resource() string
	Run(ctx context.Context, tc *tenancy.TenantContext) (*Report, error)
	RunOne(ctx context.Context, tc *tenancy.TenantContext, businessKey string) (*Report, error)
}

func itemOf[E Entity](o Outcome[E]) ReportItem {
	return ReportItem{
		ID:             o.ID,
		ExternalID:     o.ExternalID,
		BusinessKey:    o.BusinessKey,
		Classification: o.Classification,
		Entity:         o.Entity,
	}
}

func (e *Engine[R, E]) Run(ctx context.Context, tc *tenancy.TenantContext) (*Report, error) {
	res, err := e.SyncAll(ctx, tc)
	if err != nil {
		return nil, err
	}
	report := &Report{
		RunID:    res.RunID,
		Resource: res.Resource,
		Items:    make([]ReportItem, 0, len(res.Outcomes)),
		Rejected: res.Rejected,
		Created:  res.Created,
		Updated:  res.Updated,
		Warnings: res.Warnings,
	}
	for _, o := range res.Outcomes {
		report.Items = append(report.Items, itemOf(o))
	}
	return report, nil
}

func (e *Engine[R, E]) RunOne(ctx context.Context, tc *tenancy.TenantContext, businessKey string) (*Report, error) {
	out, err := e.SyncOne(ctx, tc, businessKey)
	if err != nil {
		return nil, err
	}
	report := &Report{Resource: e.spec.Resource, Items: []ReportItem{itemOf(*out)}, Warnings: out.Warnings}
	if out.Classification.IsNew() {
		report.Created = 1
	} else {
		report.Updated = 1
	}
	return report, nil
}

// Registry хранит синхронизаторы по имени ресурса.
type Registry struct {
	mu    gosync.RWMutex
	items map[string]Synchronizer
}

func NewRegistry(syncs ...Synchronizer) (*Registry, error) {
	r := &Registry{items: make(map[string]Synchronizer)}
	for _, s := range syncs {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(s Synchronizer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Resource()
	if _, exists := r.items[name]; exists {
		return fmt.Errorf("синхронизатор ресурса '%s' уже зарегистрирован", name)
	}
	r.items[name] = s
	return nil
}

// Get: неизвестный ресурс - ошибка запроса, а не сервера.
func (r *Registry) Get(resource string) (Synchronizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[resource]
	if !ok {
		return nil, apperrors.NewValidationError("entity", "неизвестный ресурс '%s'", resource)
	}
	return s, nil
}

// Resources - имена в стабильном порядке.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Файл: internal/sync/engine.go
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"business-api/internal/entities"
	"business-api/internal/integrations/bc"
	"business-api/internal/repositories"
	"business-api/internal/tenancy"
	apperrors "business-api/pkg/errors"
	"business-api/pkg/monitoring"
)

const (
	ModeAll = "all"
	ModeOne = "one"
)

// Entity - локальная строка, зеркалирующая запись ERP.
type Entity interface {
	LocalID() int64
	SetLocalID(id int64)
}

// EntitySpec описывает, как сопоставлять и сливать записи одного ресурса ERP.
type EntitySpec[R any, E Entity] struct {
	Resource string
	// KeyField - поле OData с бизнес-ключом для выборки одной записи.
	KeyField    string
	StableID    func(R) string
	BusinessKey func(R) string
	// Validate - дополнительные проверки качества; nil допустим.
	Validate func(R) error
	// Merge переносит все зеркалируемые поля; existing равен nil для новой записи.
	Merge func(existing E, remote R) E
}

// Store - хранилище сущности в БД компании. Все методы работают внутри транзакции.
type Store[E Entity] interface {
	FindByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (E, error)
	Insert(ctx context.Context, tx pgx.Tx, entity E) (int64, error)
	Update(ctx context.Context, tx pgx.Tx, entity E) error
}

// OutputCache - кеш ответов API, который надо сбросить после изменения данных.
type OutputCache interface {
	Evict(ctx context.Context, company, resource string) error
}

// RunRecorder пишет журнал запусков в БД компании.
type RunRecorder interface {
	Record(ctx context.Context, db repositories.Querier, run entities.SyncRun) error
}

type Deps struct {
	Cache   OutputCache
	Runs    RunRecorder
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Outcome - одна обработанная запись: классификация до записи и id после неё.
type Outcome[E Entity] struct {
	Entity         E              `json:"entity"`
	Classification Classification `json:"classification"`
	ID             int64          `json:"id"`
	ExternalID     string         `json:"external_id"`
	BusinessKey    string         `json:"business_key"`
	// Warnings заполняется только в SyncOne; в SyncAll предупреждения лежат в Result.
	Warnings []string `json:"warnings,omitempty"`
}

type Result[E Entity] struct {
	RunID    uuid.UUID                     `json:"run_id"`
	Resource string                        `json:"resource"`
	Outcomes []Outcome[E]                  `json:"outcomes"`
	Rejected []*apperrors.DataQualityError `json:"rejected"`
	Created  int                           `json:"created"`
	Updated  int                           `json:"updated"`
	Warnings []string                      `json:"warnings,omitempty"`
}

// Engine - обобщённый upsert записей ERP в БД компании по externalId.
type Engine[R any, E Entity] struct {
	spec  EntitySpec[R, E]
	store Store[E]
	deps  Deps
}

func NewEngine[R any, E Entity](spec EntitySpec[R, E], store Store[E], deps Deps) *Engine[R, E] {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.With(zap.String("resource", spec.Resource))
	return &Engine[R, E]{spec: spec, store: store, deps: deps}
}

func (e *Engine[R, E]) Resource() string { return e.spec.Resource }

// SyncAll забирает весь ресурс и применяет его одной транзакцией.
// Записи с плохими данными отклоняются поштучно; ошибка записи в БД откатывает всю пачку.
func (e *Engine[R, E]) SyncAll(ctx context.Context, tc *tenancy.TenantContext) (*Result[E], error) {
	run := e.startRun(ModeAll)
	logger := e.deps.Logger.With(zap.String("company", tc.Company), zap.String("run_id", run.ID.String()))

	raw, err := tc.ERP.Fetch(ctx, e.spec.Resource, bc.FetchParams{})
	if err != nil {
		e.finishRun(ctx, tc, run, nil, err)
		return nil, err
	}

	result := &Result[E]{RunID: run.ID, Resource: e.spec.Resource}
	err = repositories.NewTxManager(tc.DB.Conn()).RunInTransaction(ctx, func(tx pgx.Tx) error {
		result.Outcomes = make([]Outcome[E], 0, len(raw))
		result.Rejected = nil
		seen := make(map[string]int64, len(raw))

		for i, item := range raw {
			rec, dqErr := e.decode(i, item)
			if dqErr != nil {
				logger.Warn("Запись отклонена", zap.Int("index", i), zap.String("key", dqErr.BusinessKey), zap.String("reason", dqErr.Reason))
				result.Rejected = append(result.Rejected, dqErr)
				continue
			}
			out, err := e.upsert(ctx, tx, rec)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", e.spec.Resource, i, err)
			}
			if prev, dup := seen[out.ExternalID]; dup {
				logger.Warn("Повтор externalId в одной выборке, запись слита", zap.String("external_id", out.ExternalID), zap.Int64("id", prev))
			}
			seen[out.ExternalID] = out.ID
			result.Outcomes = append(result.Outcomes, *out)
		}
		return nil
	})
	if err != nil {
		logger.Error("Синхронизация откатилась", zap.Error(err))
		e.finishRun(ctx, tc, run, nil, err)
		return nil, err
	}

	for _, o := range result.Outcomes {
		if o.Classification.IsNew() {
			result.Created++
		} else {
			result.Updated++
		}
	}
	result.Warnings = e.evictCache(ctx, tc.Company)
	e.finishRun(ctx, tc, run, result, nil)

	logger.Info("Синхронизация завершена",
		zap.Int("total", len(raw)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// SyncOne синхронизирует одну запись по бизнес-ключу. Плохие данные здесь - ошибка, а не пропуск.
func (e *Engine[R, E]) SyncOne(ctx context.Context, tc *tenancy.TenantContext, businessKey string) (*Outcome[E], error) {
	businessKey = strings.TrimSpace(businessKey)
	if businessKey == "" {
		return nil, apperrors.NewValidationError("key", "бизнес-ключ не может быть пустым")
	}

	run := e.startRun(ModeOne)
	raw, err := tc.ERP.Fetch(ctx, e.spec.Resource, bc.FetchParams{
		Top:         1,
		FilterField: e.spec.KeyField,
		FilterValue: businessKey,
	})
	if err == nil && len(raw) == 0 {
		err = fmt.Errorf("%s %q в Business Central: %w", e.spec.Resource, businessKey, apperrors.ErrNotFound)
	}
	if err != nil {
		e.finishRun(ctx, tc, run, nil, err)
		return nil, err
	}

	rec, dqErr := e.decode(0, raw[0])
	if dqErr != nil {
		e.finishRun(ctx, tc, run, nil, dqErr)
		return nil, dqErr
	}

	var out *Outcome[E]
	err = repositories.NewTxManager(tc.DB.Conn()).RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = e.upsert(ctx, tx, rec)
		return err
	})
	if err != nil {
		e.finishRun(ctx, tc, run, nil, err)
		return nil, err
	}

	result := &Result[E]{RunID: run.ID, Resource: e.spec.Resource, Outcomes: []Outcome[E]{*out}}
	if out.Classification.IsNew() {
		result.Created = 1
	} else {
		result.Updated = 1
	}
	out.Warnings = e.evictCache(ctx, tc.Company)
	e.finishRun(ctx, tc, run, result, nil)
	return out, nil
}

func (e *Engine[R, E]) decode(index int, raw json.RawMessage) (R, *apperrors.DataQualityError) {
	var rec R
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, apperrors.NewDataQualityError(e.spec.Resource, "", index, "не удалось разобрать запись: "+err.Error())
	}
	key := e.spec.BusinessKey(rec)
	if strings.TrimSpace(e.spec.StableID(rec)) == "" {
		return rec, apperrors.NewDataQualityError(e.spec.Resource, key, index, "нет стабильного идентификатора")
	}
	if e.spec.Validate != nil {
		if err := e.spec.Validate(rec); err != nil {
			return rec, apperrors.NewDataQualityError(e.spec.Resource, key, index, err.Error())
		}
	}
	return rec, nil
}

// upsert сопоставляет запись по externalId. Классификация фиксируется до записи.
func (e *Engine[R, E]) upsert(ctx context.Context, tx pgx.Tx, rec R) (*Outcome[E], error) {
	externalID := strings.ToLower(strings.TrimSpace(e.spec.StableID(rec)))
	out := &Outcome[E]{ExternalID: externalID, BusinessKey: e.spec.BusinessKey(rec)}

	existing, err := e.store.FindByExternalID(ctx, tx, externalID)
	switch {
	case err == nil:
		out.Classification = ClassifyExisting(existing.LocalID())
		out.Entity = e.spec.Merge(existing, rec)
		out.Entity.SetLocalID(existing.LocalID())
		if err := e.store.Update(ctx, tx, out.Entity); err != nil {
			return nil, fmt.Errorf("ошибка обновления %q: %w", externalID, err)
		}
		out.ID = existing.LocalID()

	case errors.Is(err, apperrors.ErrNotFound):
		var none E
		out.Classification = ClassifyNew()
		out.Entity = e.spec.Merge(none, rec)
		id, err := e.store.Insert(ctx, tx, out.Entity)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания %q: %w", externalID, err)
		}
		out.Entity.SetLocalID(id)
		out.ID = id

	default:
		return nil, fmt.Errorf("ошибка поиска %q: %w", externalID, err)
	}
	return out, nil
}

func (e *Engine[R, E]) evictCache(ctx context.Context, company string) []string {
	if e.deps.Cache == nil {
		return nil
	}
	if err := e.deps.Cache.Evict(ctx, company, e.spec.Resource); err != nil {
		e.deps.Logger.Warn("Не удалось сбросить кеш ответов", zap.String("company", company), zap.Error(err))
		return []string{"кеш ответов не сброшен: " + err.Error()}
	}
	return nil
}

func (e *Engine[R, E]) startRun(mode string) entities.SyncRun {
	return entities.SyncRun{ID: uuid.New(), Resource: e.spec.Resource, Mode: mode, StartedAt: time.Now().UTC()}
}

// finishRun пишет журнал и метрики. Ошибка журнала не влияет на результат синхронизации.
func (e *Engine[R, E]) finishRun(ctx context.Context, tc *tenancy.TenantContext, run entities.SyncRun, result *Result[E], runErr error) {
	run.FinishedAt = time.Now().UTC()
	outcome := "ok"
	if runErr != nil {
		outcome = "error"
		run.Error = null.StringFrom(runErr.Error())
	}
	if result != nil {
		run.Created = result.Created
		run.Updated = result.Updated
		run.Rejected = len(result.Rejected)
		e.deps.Metrics.SyncRecords(e.spec.Resource, run.Created, run.Updated, run.Rejected)
	}
	e.deps.Metrics.SyncDuration(e.spec.Resource, outcome, run.FinishedAt.Sub(run.StartedAt))

	if e.deps.Runs == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.deps.Runs.Record(recordCtx, tc.DB.Conn(), run); err != nil {
		e.deps.Logger.Warn("Не удалось записать журнал синхронизации", zap.String("company", tc.Company), zap.Error(err))
	}
}

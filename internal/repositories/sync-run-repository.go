package repositories

import (
	"context"

	"business-api/internal/entities"
)

type SyncRunRepository struct{}

func NewSyncRunRepository() *SyncRunRepository {
	return &SyncRunRepository{}
}

// Record пишет запуск вне транзакции синхронизации: журнал нужен и при откате.
func (r *SyncRunRepository) Record(ctx context.Context, db Querier, run entities.SyncRun) error {
	query, args, err := psql().Insert("sync_runs").
		Columns("id", "resource", "mode", "started_at", "finished_at", "created", "updated", "rejected", "error").
		Values(run.ID, run.Resource, run.Mode, run.StartedAt, run.FinishedAt, run.Created, run.Updated, run.Rejected, run.Error).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, query, args...)
	return err
}

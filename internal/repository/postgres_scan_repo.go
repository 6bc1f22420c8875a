package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/reachscan/internal/model"
)

// PostgresScanRepo はPostgreSQLを使用したスキャンリポジトリ。
type PostgresScanRepo struct {
	db *sql.DB
}

// NewPostgresScanRepo はPostgresScanRepoを生成する。
func NewPostgresScanRepo(db *sql.DB) *PostgresScanRepo {
	return &PostgresScanRepo{db: db}
}

// Create はスキャンを作成する。
func (r *PostgresScanRepo) Create(ctx context.Context, scan *model.Scan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scans (id, status, handle_count, success_count, failure_count,
		                    post_count, post_limit, delay_seconds, max_workers,
		                    started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		scan.ID, scan.Status, scan.HandleCount, scan.SuccessCount, scan.FailureCount,
		scan.PostCount, scan.Config.PostLimit, scan.Config.DelaySeconds, scan.Config.MaxWorkers,
		scan.StartedAt, nullTime(scan.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("スキャンの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateResult はスキャン完了時に状態と件数を更新する。
func (r *PostgresScanRepo) UpdateResult(ctx context.Context, scan *model.Scan) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scans SET
		    status = $2, success_count = $3, failure_count = $4,
		    post_count = $5, finished_at = $6
		 WHERE id = $1`,
		scan.ID, scan.Status, scan.SuccessCount, scan.FailureCount,
		scan.PostCount, nullTime(scan.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("スキャンの更新に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのスキャンを取得する。見つからない場合はnilを返す。
func (r *PostgresScanRepo) FindByID(ctx context.Context, id string) (*model.Scan, error) {
	scan := &model.Scan{}
	var finishedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, handle_count, success_count, failure_count,
		        post_count, post_limit, delay_seconds, max_workers,
		        started_at, finished_at
		 FROM scans WHERE id = $1`,
		id,
	).Scan(
		&scan.ID, &scan.Status, &scan.HandleCount, &scan.SuccessCount, &scan.FailureCount,
		&scan.PostCount, &scan.Config.PostLimit, &scan.Config.DelaySeconds, &scan.Config.MaxWorkers,
		&scan.StartedAt, &finishedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スキャンの取得に失敗しました: %w", err)
	}

	scan.FinishedAt = nullTimeValue(finishedAt)
	return scan, nil
}

// List はスキャンを開始時刻の降順でlimit件まで取得する。
func (r *PostgresScanRepo) List(ctx context.Context, limit int) ([]*model.Scan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, handle_count, success_count, failure_count,
		        post_count, post_limit, delay_seconds, max_workers,
		        started_at, finished_at
		 FROM scans ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("スキャン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var scans []*model.Scan
	for rows.Next() {
		scan := &model.Scan{}
		var finishedAt sql.NullTime

		if err := rows.Scan(
			&scan.ID, &scan.Status, &scan.HandleCount, &scan.SuccessCount, &scan.FailureCount,
			&scan.PostCount, &scan.Config.PostLimit, &scan.Config.DelaySeconds, &scan.Config.MaxWorkers,
			&scan.StartedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("スキャン行の読み取りに失敗しました: %w", err)
		}

		scan.FinishedAt = nullTimeValue(finishedAt)
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スキャン一覧の走査に失敗しました: %w", err)
	}

	return scans, nil
}

// nullTime はゼロ値のtime.Timeをsql.NullTimeに変換する。
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullTimeValue はsql.NullTimeをtime.Timeに変換する（NULLはゼロ値）。
func nullTimeValue(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

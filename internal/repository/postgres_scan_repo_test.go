package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/reachscan/internal/model"
)

// PostgresScanRepoはScanRepositoryインターフェースを満たすことを検証
func TestPostgresScanRepo_ImplementsInterface(t *testing.T) {
	var _ ScanRepository = (*PostgresScanRepo)(nil)
}

// NewPostgresScanRepoが正しく初期化されることを検証
func TestNewPostgresScanRepo_Initializes(t *testing.T) {
	repo := NewPostgresScanRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Scanモデルのフィールドが正しく構築されることを検証
func TestPostgresScanRepo_ScanModel_Fields(t *testing.T) {
	now := time.Now()
	scan := &model.Scan{
		ID:           "scan-id-1",
		Status:       model.ScanStatusRunning,
		HandleCount:  5,
		SuccessCount: 0,
		FailureCount: 0,
		Config:       model.ScanConfig{PostLimit: 3, DelaySeconds: 1.5, MaxWorkers: 3},
		StartedAt:    now,
	}

	if scan.ID != "scan-id-1" {
		t.Errorf("scan.ID = %q, want %q", scan.ID, "scan-id-1")
	}
	if scan.Status != model.ScanStatusRunning {
		t.Errorf("scan.Status = %q, want %q", scan.Status, model.ScanStatusRunning)
	}
	if scan.Config.PostLimit != 3 {
		t.Errorf("scan.Config.PostLimit = %d, want 3", scan.Config.PostLimit)
	}
}

// 実行中スキャンのFinishedAtがゼロ値であることを検証
func TestPostgresScanRepo_ScanModel_ZeroFinishedAt(t *testing.T) {
	scan := &model.Scan{
		ID:     "scan-id-2",
		Status: model.ScanStatusRunning,
	}

	if !scan.FinishedAt.IsZero() {
		t.Error("finished_at should be zero for a running scan")
	}
}

// nullTimeがゼロ値のtime.TimeをNULLに変換することを検証
func TestNullTime_ZeroValue(t *testing.T) {
	nt := nullTime(time.Time{})

	if nt.Valid {
		t.Error("nullTime(zero) should be invalid (NULL)")
	}
}

// nullTimeが非ゼロのtime.Timeを有効な値に変換することを検証
func TestNullTime_NonZeroValue(t *testing.T) {
	now := time.Now()
	nt := nullTime(now)

	if !nt.Valid {
		t.Fatal("nullTime(now) should be valid")
	}
	if !nt.Time.Equal(now) {
		t.Errorf("nullTime(now).Time = %v, want %v", nt.Time, now)
	}
}

// nullTimeValueがNULLをゼロ値に変換することを検証
func TestNullTimeValue_Null(t *testing.T) {
	got := nullTimeValue(sql.NullTime{})

	if !got.IsZero() {
		t.Errorf("nullTimeValue(NULL) = %v, want zero value", got)
	}
}

// nullTimeValueが有効な値をそのまま返すことを検証
func TestNullTimeValue_Valid(t *testing.T) {
	now := time.Now()
	got := nullTimeValue(sql.NullTime{Time: now, Valid: true})

	if !got.Equal(now) {
		t.Errorf("nullTimeValue = %v, want %v", got, now)
	}
}

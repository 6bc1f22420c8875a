// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/scanner"
)

// defaultScanListLimit はスキャン一覧の1回の取得件数。
const defaultScanListLimit = 50

// maxHandlesPerScan は1回のスキャンで受け付けるハンドル数の上限。
const maxHandlesPerScan = 200

// ScanServiceInterface はスキャンハンドラーが必要とするサービスインターフェース。
type ScanServiceInterface interface {
	// StartScan はスキャンを非同期実行し、スキャンIDを返す。
	StartScan(ctx context.Context, handles []string, cfg model.ScanConfig) (string, error)
	// GetScan は指定IDのスキャンと、実行中の場合はその進捗を返す。
	GetScan(ctx context.Context, scanID string) (*model.Scan, *scanner.Progress, error)
	// ListScans はスキャンを開始時刻の降順でlimit件まで返す。
	ListScans(ctx context.Context, limit int) ([]model.Scan, error)
	// GetPosts はスキャンの投稿レコードを返す。
	GetPosts(ctx context.Context, scanID string) ([]model.PostRecord, error)
	// GetVerdicts はスキャンのアカウント判定を返す。
	GetVerdicts(ctx context.Context, scanID string) ([]model.AccountVerdict, error)
	// GetAnalytics はスキャンのアカウント指標を返す。
	GetAnalytics(ctx context.Context, scanID string) ([]model.AccountAnalytics, error)
	// GetFailures はスキャンの失敗一覧を返す。
	GetFailures(ctx context.Context, scanID string) ([]model.ScanFailure, error)
}

// ScanHandler はスキャン管理のHTTPハンドラー。
type ScanHandler struct {
	service  ScanServiceInterface
	defaults model.ScanConfig // リクエストで省略された設定値の既定
}

// NewScanHandler はScanHandlerを生成する。
func NewScanHandler(service ScanServiceInterface, defaults model.ScanConfig) *ScanHandler {
	return &ScanHandler{service: service, defaults: defaults}
}

// --- リクエスト/レスポンス型 ---

// startScanRequest はスキャン開始リクエストのボディ。
// 数値設定は省略可能で、省略時はサーバー側のデフォルトが使われる。
type startScanRequest struct {
	Handles      []string `json:"handles"`
	PostLimit    *int     `json:"post_limit,omitempty"`
	DelaySeconds *float64 `json:"delay_seconds,omitempty"`
	MaxWorkers   *int     `json:"max_workers,omitempty"`
}

// startScanResponse はスキャン開始のレスポンス。
type startScanResponse struct {
	ScanID string `json:"scan_id"`
}

// scanDetailResponse はスキャン詳細のレスポンス。
// 実行中の場合のみprogressが含まれる。
type scanDetailResponse struct {
	model.Scan
	Progress *scanner.Progress `json:"progress,omitempty"`
}

// scanListResponse はスキャン一覧のレスポンス。
type scanListResponse struct {
	Scans []model.Scan `json:"scans"`
}

// StartScan はスキャンを開始する。
// POST /api/scans
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("JSONのパースに失敗しました"))
		return
	}

	if len(req.Handles) == 0 {
		handleServiceError(w, model.NewInvalidRequestError("handlesが空です"))
		return
	}
	if len(req.Handles) > maxHandlesPerScan {
		handleServiceError(w, model.NewInvalidRequestError("ハンドル数が上限を超えています"))
		return
	}

	cfg := h.defaults
	if req.PostLimit != nil {
		cfg.PostLimit = *req.PostLimit
	}
	if req.DelaySeconds != nil {
		cfg.DelaySeconds = *req.DelaySeconds
	}
	if req.MaxWorkers != nil {
		cfg.MaxWorkers = *req.MaxWorkers
	}

	scanID, err := h.service.StartScan(r.Context(), req.Handles, cfg)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(startScanResponse{ScanID: scanID})
}

// ListScans はスキャン一覧を取得する。
// GET /api/scans
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.service.ListScans(r.Context(), defaultScanListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if scans == nil {
		scans = []model.Scan{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scanListResponse{Scans: scans})
}

// GetScan はスキャン詳細を取得する。
// GET /api/scans/{id}
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "id")

	scan, progress, err := h.service.GetScan(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scanDetailResponse{Scan: *scan, Progress: progress})
}

// GetPosts はスキャンの投稿レコード一覧を取得する。
// GET /api/scans/{id}/posts
func (h *ScanHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.GetPosts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if posts == nil {
		posts = []model.PostRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]model.PostRecord{"posts": posts})
}

// GetVerdicts はスキャンのアカウント判定一覧を取得する。
// GET /api/scans/{id}/verdicts
func (h *ScanHandler) GetVerdicts(w http.ResponseWriter, r *http.Request) {
	verdicts, err := h.service.GetVerdicts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if verdicts == nil {
		verdicts = []model.AccountVerdict{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]model.AccountVerdict{"verdicts": verdicts})
}

// GetAnalytics はスキャンのアカウント指標一覧を取得する。
// GET /api/scans/{id}/analytics
func (h *ScanHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.service.GetAnalytics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if analytics == nil {
		analytics = []model.AccountAnalytics{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]model.AccountAnalytics{"analytics": analytics})
}

// GetFailures はスキャンの失敗一覧を取得する。
// GET /api/scans/{id}/failures
func (h *ScanHandler) GetFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := h.service.GetFailures(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if failures == nil {
		failures = []model.ScanFailure{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]model.ScanFailure{"failures": failures})
}

// --- エラーレスポンス ---

// apiErrorResponse はエラーレスポンスの統一フォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse はAPIErrorをJSONで書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeScanNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidHandle, model.ErrCodeNoValidHandles:
		return http.StatusBadRequest
	case model.ErrCodeHTTPError, model.ErrCodeAPIError, model.ErrCodeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

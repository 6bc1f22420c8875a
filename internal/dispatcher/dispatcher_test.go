package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/reachscan/internal/metrics"
	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/tikwm"
)

// fakeFetcher はPostFetcherのフェイク実装。
// ハンドルごとにあらかじめ結果を設定する。
type fakeFetcher struct {
	mu         sync.Mutex
	fetchCalls map[string]int
	probeCalls map[string]int

	records map[string][]model.PostRecord
	errs    map[string]error
	probes  map[string]model.ProbeResult

	// concurrent は同時実行中のタスク数、maxConcurrent はその最大値
	concurrent    int32
	maxConcurrent int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fetchCalls: make(map[string]int),
		probeCalls: make(map[string]int),
		records:    make(map[string][]model.PostRecord),
		errs:       make(map[string]error),
		probes:     make(map[string]model.ProbeResult),
	}
}

func (f *fakeFetcher) FetchPosts(ctx context.Context, handle string, limit int) ([]model.PostRecord, error) {
	cur := atomic.AddInt32(&f.concurrent, 1)
	for {
		max := atomic.LoadInt32(&f.maxConcurrent)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxConcurrent, max, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.concurrent, -1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[handle]++
	if err, ok := f.errs[handle]; ok {
		return nil, err
	}
	return f.records[handle], nil
}

func (f *fakeFetcher) ProbeAccountStatus(ctx context.Context, handle string) model.ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls[handle]++
	if p, ok := f.probes[handle]; ok {
		return p
	}
	return model.ProbeResult{AccountHandle: handle, Kind: model.ProbeOK}
}

func post(handle string, play int64) model.PostRecord {
	return model.PostRecord{AccountHandle: handle, PlayCount: play}
}

func newTestDispatcher(f PostFetcher) *Dispatcher {
	d := NewDispatcher(f, metrics.Nop{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	// テストではタスク間の待機を省略する
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func testConfig() model.ScanConfig {
	return model.ScanConfig{PostLimit: 3, DelaySeconds: 0.5, MaxWorkers: 2}
}

func TestRunBatch_EmptyHandles_ReturnsNil(t *testing.T) {
	d := newTestDispatcher(newFakeFetcher())

	got := d.RunBatch(context.Background(), nil, testConfig(), nil)
	if got != nil {
		t.Errorf("RunBatch(nil) = %v, want nil", got)
	}
}

func TestRunBatch_AllSuccess_EachHandleOnce(t *testing.T) {
	f := newFakeFetcher()
	handles := []string{"alice", "bob", "carol", "dave", "eve"}
	for _, h := range handles {
		f.records[h] = []model.PostRecord{post(h, 100)}
	}
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), handles, testConfig(), nil)

	if len(outcomes) != 5 {
		t.Fatalf("len(outcomes) = %d, want 5", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.OK() {
			t.Errorf("outcome for %q failed: %+v", o.Handle, o.Failure)
		}
	}
	// 各ハンドルはちょうど1回ずつ処理される
	for _, h := range handles {
		if f.fetchCalls[h] != 1 {
			t.Errorf("fetchCalls[%q] = %d, want 1", h, f.fetchCalls[h])
		}
	}
}

func TestRunBatch_RespectsWorkerLimit(t *testing.T) {
	f := newFakeFetcher()
	handles := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	for _, h := range handles {
		f.records[h] = []model.PostRecord{post(h, 100)}
	}
	d := newTestDispatcher(f)

	cfg := model.ScanConfig{PostLimit: 3, DelaySeconds: 0.5, MaxWorkers: 2}
	d.RunBatch(context.Background(), handles, cfg, nil)

	if got := atomic.LoadInt32(&f.maxConcurrent); got > 2 {
		t.Errorf("max concurrent tasks = %d, want <= 2", got)
	}
}

func TestRunBatch_NormalizesAndDeduplicatesHandles(t *testing.T) {
	f := newFakeFetcher()
	f.records["alice"] = []model.PostRecord{post("alice", 100)}
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), []string{"@alice", " alice ", "alice", ""}, testConfig(), nil)

	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1 (deduplicated)", len(outcomes))
	}
	if f.fetchCalls["alice"] != 1 {
		t.Errorf("fetchCalls[alice] = %d, want 1", f.fetchCalls["alice"])
	}
}

func TestRunBatch_InvalidHandle_FailsWithoutNetworkCall(t *testing.T) {
	f := newFakeFetcher()
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), []string{"bad handle!"}, testConfig(), nil)

	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.OK() {
		t.Fatal("expected failure for invalid handle")
	}
	if o.Failure.ReasonCode != model.ErrCodeInvalidHandle {
		t.Errorf("ReasonCode = %q, want %q", o.Failure.ReasonCode, model.ErrCodeInvalidHandle)
	}
	if len(f.fetchCalls) != 0 {
		t.Errorf("fetchCalls = %v, want no network calls", f.fetchCalls)
	}
}

func TestRunBatch_FetchError_ClassifiedFailure(t *testing.T) {
	f := newFakeFetcher()
	f.errs["alice"] = &tikwm.FetchError{Kind: tikwm.KindAPIError, APICode: -1, Msg: "user not found"}
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), []string{"alice"}, testConfig(), nil)

	o := outcomes[0]
	if o.OK() {
		t.Fatal("expected failure")
	}
	if o.Failure.ReasonCode != model.ErrCodeAPIError {
		t.Errorf("ReasonCode = %q, want %q", o.Failure.ReasonCode, model.ErrCodeAPIError)
	}
	if o.Failure.AccountHandle != "alice" {
		t.Errorf("AccountHandle = %q, want alice", o.Failure.AccountHandle)
	}
}

func TestRunBatch_EmptyResult_ProbeOK_EmptyResultCode(t *testing.T) {
	f := newFakeFetcher()
	// 投稿0件の成功 + プローブ正常 → EMPTY_RESULT
	f.records["alice"] = nil
	f.probes["alice"] = model.ProbeResult{AccountHandle: "alice", Kind: model.ProbeOK}
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), []string{"alice"}, testConfig(), nil)

	o := outcomes[0]
	if o.OK() {
		t.Fatal("expected failure for empty result")
	}
	if o.Failure.ReasonCode != model.ErrCodeEmptyResult {
		t.Errorf("ReasonCode = %q, want %q", o.Failure.ReasonCode, model.ErrCodeEmptyResult)
	}
	if f.probeCalls["alice"] != 1 {
		t.Errorf("probeCalls = %d, want 1", f.probeCalls["alice"])
	}
}

func TestRunBatch_EmptyResult_ProbeError_MapsKind(t *testing.T) {
	f := newFakeFetcher()
	f.records["alice"] = nil
	f.probes["alice"] = model.ProbeResult{
		AccountHandle: "alice",
		Kind:          model.ProbeHTTPError,
		StatusCode:    403,
		Message:       "上流APIがステータス 403 を返しました",
	}
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), []string{"alice"}, testConfig(), nil)

	o := outcomes[0]
	if o.Failure == nil {
		t.Fatal("expected failure")
	}
	if o.Failure.ReasonCode != model.ErrCodeHTTPError {
		t.Errorf("ReasonCode = %q, want %q", o.Failure.ReasonCode, model.ErrCodeHTTPError)
	}
}

func TestRunBatch_SuccessfulFetch_NoProbe(t *testing.T) {
	f := newFakeFetcher()
	f.records["alice"] = []model.PostRecord{post("alice", 100)}
	d := newTestDispatcher(f)

	d.RunBatch(context.Background(), []string{"alice"}, testConfig(), nil)

	if f.probeCalls["alice"] != 0 {
		t.Errorf("probeCalls = %d, want 0 (probe only on empty result)", f.probeCalls["alice"])
	}
}

func TestRunBatch_MixedOutcomes(t *testing.T) {
	f := newFakeFetcher()
	f.records["alice"] = []model.PostRecord{post("alice", 100)}
	f.errs["bob"] = &tikwm.FetchError{Kind: tikwm.KindNetworkError, Msg: "タイムアウトしました"}
	d := newTestDispatcher(f)

	outcomes := d.RunBatch(context.Background(), []string{"alice", "bob"}, testConfig(), nil)

	if len(outcomes) != 2 {
		t.Fatalf("len(outcomes) = %d, want 2", len(outcomes))
	}

	byHandle := make(map[string]Outcome)
	for _, o := range outcomes {
		byHandle[o.Handle] = o
	}
	if !byHandle["alice"].OK() {
		t.Error("alice should succeed")
	}
	if byHandle["bob"].OK() {
		t.Error("bob should fail")
	}
	if byHandle["bob"].Failure.ReasonCode != model.ErrCodeNetworkError {
		t.Errorf("bob ReasonCode = %q, want %q", byHandle["bob"].Failure.ReasonCode, model.ErrCodeNetworkError)
	}
}

func TestRunBatch_ProgressCallback(t *testing.T) {
	f := newFakeFetcher()
	handles := []string{"alice", "bob", "carol"}
	for _, h := range handles {
		f.records[h] = []model.PostRecord{post(h, 100)}
	}
	d := newTestDispatcher(f)

	var completed []int
	var totals []int
	d.RunBatch(context.Background(), handles, testConfig(), func(c, total int, handle string, ok bool) {
		completed = append(completed, c)
		totals = append(totals, total)
		if !ok {
			t.Errorf("progress reported failure for %q", handle)
		}
	})

	// 進捗は完了順に1から単調増加する
	if len(completed) != 3 {
		t.Fatalf("progress called %d times, want 3", len(completed))
	}
	for i, c := range completed {
		if c != i+1 {
			t.Errorf("completed[%d] = %d, want %d", i, c, i+1)
		}
		if totals[i] != 3 {
			t.Errorf("totals[%d] = %d, want 3", i, totals[i])
		}
	}
}

func TestRunBatch_CanceledContext_TasksFailAsCanceled(t *testing.T) {
	f := newFakeFetcher()
	f.records["alice"] = []model.PostRecord{post("alice", 100)}
	d := newTestDispatcher(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := d.RunBatch(ctx, []string{"alice"}, testConfig(), nil)

	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.OK() {
		t.Fatal("expected cancellation failure")
	}
	if o.Failure.ReasonCode != model.ErrCodeNetworkError {
		t.Errorf("ReasonCode = %q, want %q", o.Failure.ReasonCode, model.ErrCodeNetworkError)
	}
	if o.Failure.Message != "キャンセルされました" {
		t.Errorf("Message = %q, want cancellation message", o.Failure.Message)
	}
}

func TestRunBatch_PanicInTask_ConvertedToFailure(t *testing.T) {
	d := newTestDispatcher(panickyFetcher{})

	outcomes := d.RunBatch(context.Background(), []string{"alice"}, testConfig(), nil)

	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.OK() {
		t.Fatal("expected failure from panic")
	}
	if o.Failure.ReasonCode != model.ErrCodeNetworkError {
		t.Errorf("ReasonCode = %q, want %q", o.Failure.ReasonCode, model.ErrCodeNetworkError)
	}
}

// panickyFetcher は常にpanicするPostFetcher。
type panickyFetcher struct{}

func (panickyFetcher) FetchPosts(ctx context.Context, handle string, limit int) ([]model.PostRecord, error) {
	panic("boom")
}

func (panickyFetcher) ProbeAccountStatus(ctx context.Context, handle string) model.ProbeResult {
	panic("boom")
}

package classifier

import (
	"math"
	"testing"

	"github.com/hitoshi/reachscan/internal/model"
)

func TestEngagementRate_NormalCase(t *testing.T) {
	// (10+5+3) / 1000 = 0.018
	got := EngagementRate(1000, 10, 5, 3)
	if math.Abs(got-0.018) > 1e-9 {
		t.Errorf("EngagementRate = %v, want 0.018", got)
	}
}

func TestEngagementRate_ZeroPlays_UsesFloorOfOne(t *testing.T) {
	// 再生数0はゼロ除算を避けるため1として扱う
	got := EngagementRate(0, 5, 0, 0)
	if got != 5.0 {
		t.Errorf("EngagementRate(0 plays) = %v, want 5.0", got)
	}
}

func TestClassify_SuppressedAtBoundary(t *testing.T) {
	// play <= 10 かつ engagement <= 5 で明確限流
	if got := Classify(10, 5, 0, 0); got != model.VerdictSuppressed {
		t.Errorf("Classify(10, 5, 0, 0) = %q, want suppressed", got)
	}
}

func TestClassify_ZeroEverything_Suppressed(t *testing.T) {
	if got := Classify(0, 0, 0, 0); got != model.VerdictSuppressed {
		t.Errorf("Classify(0, 0, 0, 0) = %q, want suppressed", got)
	}
}

func TestClassify_PlayElevenEscapesSuppressed(t *testing.T) {
	// play=11 は明確限流の閾値を超える。rate = 0/11 = 0 < 0.001 のため疑似限流
	if got := Classify(11, 0, 0, 0); got != model.VerdictSuspected {
		t.Errorf("Classify(11, 0, 0, 0) = %q, want suspected", got)
	}
}

func TestClassify_EngagementSixEscapesSuppressed(t *testing.T) {
	// play=10 でも engagement=6 なら明確限流ではない。
	// rate = 6/10 = 0.6 >= 0.001 のため正常
	if got := Classify(10, 6, 0, 0); got != model.VerdictNormal {
		t.Errorf("Classify(10, 6, 0, 0) = %q, want normal", got)
	}
}

func TestClassify_LowPlayBand_SuspectedOnLowRate(t *testing.T) {
	// play=50（低再生帯の上限）で rate = 0 < 0.001 のため疑似限流
	if got := Classify(50, 0, 0, 0); got != model.VerdictSuspected {
		t.Errorf("Classify(50, 0, 0, 0) = %q, want suspected", got)
	}
}

func TestClassify_LowPlayBand_NormalOnSufficientRate(t *testing.T) {
	// play=50, engagement=6 → rate = 0.12 >= 0.001 のため正常
	if got := Classify(50, 6, 0, 0); got != model.VerdictNormal {
		t.Errorf("Classify(50, 6, 0, 0) = %q, want normal", got)
	}
}

func TestClassify_HighPlayBand_SuspectedOnVeryLowRate(t *testing.T) {
	// play=100000, engagement=1 → rate = 0.00001 < 0.0001 のため疑似限流
	if got := Classify(100000, 1, 0, 0); got != model.VerdictSuspected {
		t.Errorf("Classify(100000, 1, 0, 0) = %q, want suspected", got)
	}
}

func TestClassify_HighPlayBand_Normal(t *testing.T) {
	// play=51（高再生帯の下限）で rate = 1/51 ≈ 0.0196 >= 0.0001 のため正常
	if got := Classify(51, 1, 0, 0); got != model.VerdictNormal {
		t.Errorf("Classify(51, 1, 0, 0) = %q, want normal", got)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// play=5, engagement=0 は明確限流のルールと低再生帯のルールの両方に該当するが、
	// 上から順に評価するため明確限流が勝つ
	if got := Classify(5, 0, 0, 0); got != model.VerdictSuppressed {
		t.Errorf("Classify(5, 0, 0, 0) = %q, want suppressed (first rule wins)", got)
	}
}

func TestClassifyPost_UsesAllFourCounters(t *testing.T) {
	p := model.PostRecord{PlayCount: 10, LikeCount: 2, CommentCount: 2, CollectCount: 2}
	// engagement = 6 > 5 のため明確限流ではない
	if got := ClassifyPost(p); got == model.VerdictSuppressed {
		t.Errorf("ClassifyPost = %q, want not suppressed", got)
	}
}

func TestClassifyAccount_EmptySlice_NormalLow(t *testing.T) {
	status, tier := ClassifyAccount(nil)
	if status != model.VerdictNormal {
		t.Errorf("status = %q, want normal", status)
	}
	if tier != model.RiskLow {
		t.Errorf("tier = %q, want low", tier)
	}
}

func TestClassifyAccount_SuppressedAtSixtyPercent(t *testing.T) {
	// 5件中3件が明確限流 → suppressedRate = 0.6 でちょうど閾値
	verdicts := []model.ThrottleVerdict{
		model.VerdictSuppressed,
		model.VerdictSuppressed,
		model.VerdictSuppressed,
		model.VerdictNormal,
		model.VerdictNormal,
	}
	status, tier := ClassifyAccount(verdicts)
	if status != model.VerdictSuppressed {
		t.Errorf("status = %q, want suppressed", status)
	}
	if tier != model.RiskHigh {
		t.Errorf("tier = %q, want high", tier)
	}
}

func TestClassifyAccount_SuspectedOnThrottledRate(t *testing.T) {
	// suppressedRate = 0.25 < 0.6 だが throttledRate = 0.5 で疑似限流
	verdicts := []model.ThrottleVerdict{
		model.VerdictSuppressed,
		model.VerdictSuspected,
		model.VerdictNormal,
		model.VerdictNormal,
	}
	status, tier := ClassifyAccount(verdicts)
	if status != model.VerdictSuspected {
		t.Errorf("status = %q, want suspected", status)
	}
	if tier != model.RiskMedium {
		t.Errorf("tier = %q, want medium", tier)
	}
}

func TestClassifyAccount_SuspectedOnSuspectedRate(t *testing.T) {
	// suspectedRate = 2/5 = 0.4 でちょうど閾値（throttledRateも0.4 < 0.5）
	verdicts := []model.ThrottleVerdict{
		model.VerdictSuspected,
		model.VerdictSuspected,
		model.VerdictNormal,
		model.VerdictNormal,
		model.VerdictNormal,
	}
	status, tier := ClassifyAccount(verdicts)
	if status != model.VerdictSuspected {
		t.Errorf("status = %q, want suspected", status)
	}
	if tier != model.RiskMedium {
		t.Errorf("tier = %q, want medium", tier)
	}
}

func TestClassifyAccount_Normal(t *testing.T) {
	// suppressed 1/5 = 0.2, suspected 1/5 = 0.2, throttled 0.4 < 0.5
	verdicts := []model.ThrottleVerdict{
		model.VerdictSuppressed,
		model.VerdictSuspected,
		model.VerdictNormal,
		model.VerdictNormal,
		model.VerdictNormal,
	}
	status, tier := ClassifyAccount(verdicts)
	if status != model.VerdictNormal {
		t.Errorf("status = %q, want normal", status)
	}
	if tier != model.RiskLow {
		t.Errorf("tier = %q, want low", tier)
	}
}

func TestReasonCodes_NoAnomaly(t *testing.T) {
	codes := ReasonCodes(0.1, 0.1, 500, 0.05)
	if len(codes) != 1 || codes[0] != model.ReasonNoAnomaly {
		t.Errorf("ReasonCodes = %v, want [no_anomaly]", codes)
	}
}

func TestReasonCodes_AllAnomalies(t *testing.T) {
	codes := ReasonCodes(0.7, 0.5, 50, 0.005)

	want := []model.ReasonCode{
		model.ReasonNearZeroPlays,
		model.ReasonAbnormalEngagement,
		model.ReasonLowReach,
		model.ReasonEngagementShortfall,
	}
	if len(codes) != len(want) {
		t.Fatalf("ReasonCodes returned %d codes, want %d: %v", len(codes), len(want), codes)
	}
	for i, c := range want {
		if codes[i] != c {
			t.Errorf("codes[%d] = %q, want %q", i, codes[i], c)
		}
	}
}

func TestReasonCodes_LowReachBoundary(t *testing.T) {
	// avgPlay = 100 はちょうど閾値で「低い」には該当しない
	codes := ReasonCodes(0, 0, 100, 0.05)
	for _, c := range codes {
		if c == model.ReasonLowReach {
			t.Errorf("avgPlay=100 should not trigger %q", model.ReasonLowReach)
		}
	}
}

func TestReasonCodes_EngagementShortfallBoundary(t *testing.T) {
	// avgRate = 0.01 はちょうど閾値で不足には該当しない
	codes := ReasonCodes(0, 0, 500, 0.01)
	for _, c := range codes {
		if c == model.ReasonEngagementShortfall {
			t.Errorf("avgRate=0.01 should not trigger %q", model.ReasonEngagementShortfall)
		}
	}
}

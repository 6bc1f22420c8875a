// Package classifier は投稿・アカウントの限流（配信抑制）判定を提供する。
// 判定は再生数とエンゲージメントのカウンタのみから導出する純関数で、
// 隠れた状態を持たない。閾値はヒューリスティック定数であり、
// 導出根拠の再検証はせずそのまま設定値として保持する。
package classifier

import "github.com/hitoshi/reachscan/internal/model"

// 投稿レベルの判定閾値。
const (
	// suppressedPlayThreshold は明確限流とみなす再生数の上限。
	suppressedPlayThreshold = 10
	// suppressedEngagementThreshold は明確限流とみなす総エンゲージメントの上限。
	suppressedEngagementThreshold = 5
	// suspectedPlayThreshold は疑似限流判定で低再生帯とみなす再生数の上限。
	suspectedPlayThreshold = 50
	// minEngagementRate は低再生帯での最低エンゲージメント率。
	minEngagementRate = 0.001
	// minEngagementRateHighPlay は再生数が正常な帯域での最低エンゲージメント率。
	minEngagementRateHighPlay = minEngagementRate * 0.1
)

// アカウントレベルの判定閾値。
const (
	// accountSuppressedThreshold は明確限流アカウントとみなす明確限流率。
	accountSuppressedThreshold = 0.6
	// accountThrottledThreshold は疑似限流アカウントとみなす総限流率。
	accountThrottledThreshold = 0.5
	// accountSuspectedThreshold は疑似限流アカウントとみなす疑似限流率。
	accountSuspectedThreshold = 0.4
	// lowReachAvgPlay は「全体の再生数が低い」とみなす平均再生数。
	lowReachAvgPlay = 100
	// shortfallAvgEngagementRate は「エンゲージメント率が著しく不足」とみなす平均値。
	shortfallAvgEngagementRate = 0.01
)

// EngagementRate は投稿1件のエンゲージメント率を返す。
// ゼロ除算を避けるため再生数は1を下限とする。
func EngagementRate(playCount, likeCount, commentCount, collectCount int64) float64 {
	engagement := likeCount + commentCount + collectCount
	plays := playCount
	if plays < 1 {
		plays = 1
	}
	return float64(engagement) / float64(plays)
}

// Classify は投稿1件のカウンタから限流判定を導出する。
// ルールは上から順に評価し、最初に一致したものが勝つ。
// 全ての非負入力に対して必ず3値のいずれかを返す（全域・決定的）。
func Classify(playCount, likeCount, commentCount, collectCount int64) model.ThrottleVerdict {
	engagement := likeCount + commentCount + collectCount
	rate := EngagementRate(playCount, likeCount, commentCount, collectCount)

	switch {
	case playCount <= suppressedPlayThreshold && engagement <= suppressedEngagementThreshold:
		return model.VerdictSuppressed
	case playCount <= suspectedPlayThreshold && rate < minEngagementRate:
		return model.VerdictSuspected
	case playCount > suspectedPlayThreshold && rate < minEngagementRateHighPlay:
		return model.VerdictSuspected
	default:
		return model.VerdictNormal
	}
}

// ClassifyPost はPostRecordの4カウンタで判定するヘルパー。
func ClassifyPost(p model.PostRecord) model.ThrottleVerdict {
	return Classify(p.PlayCount, p.LikeCount, p.CommentCount, p.CollectCount)
}

// ClassifyAccount は投稿ごとの判定の分布からアカウント状態とリスク等級を導出する。
// 判定の分布以外の入力（別呼び出し等）には依存しない。
// 空スライスには正常・低リスクを返す。
func ClassifyAccount(verdicts []model.ThrottleVerdict) (model.ThrottleVerdict, model.RiskTier) {
	n := len(verdicts)
	if n == 0 {
		return model.VerdictNormal, model.RiskLow
	}

	var suppressed, suspected int
	for _, v := range verdicts {
		switch v {
		case model.VerdictSuppressed:
			suppressed++
		case model.VerdictSuspected:
			suspected++
		}
	}

	suppressedRate := float64(suppressed) / float64(n)
	suspectedRate := float64(suspected) / float64(n)
	throttledRate := float64(suppressed+suspected) / float64(n)

	switch {
	case suppressedRate >= accountSuppressedThreshold:
		return model.VerdictSuppressed, model.RiskHigh
	case throttledRate >= accountThrottledThreshold || suspectedRate >= accountSuspectedThreshold:
		return model.VerdictSuspected, model.RiskMedium
	default:
		return model.VerdictNormal, model.RiskLow
	}
}

// ReasonCodes はアカウント限流判定に付与する理由コード一覧を返す。
// 該当する理由がない場合は「異常なし」1件のみを返す。
func ReasonCodes(suppressedRate, suspectedRate, avgPlayCount, avgEngagementRate float64) []model.ReasonCode {
	var codes []model.ReasonCode

	if suppressedRate >= accountSuppressedThreshold {
		codes = append(codes, model.ReasonNearZeroPlays)
	}
	if suspectedRate >= accountSuspectedThreshold {
		codes = append(codes, model.ReasonAbnormalEngagement)
	}
	if avgPlayCount < lowReachAvgPlay {
		codes = append(codes, model.ReasonLowReach)
	}
	if avgEngagementRate < shortfallAvgEngagementRate {
		codes = append(codes, model.ReasonEngagementShortfall)
	}

	if len(codes) == 0 {
		return []model.ReasonCode{model.ReasonNoAnomaly}
	}
	return codes
}

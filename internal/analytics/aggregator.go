// Package analytics はアカウント単位の派生指標とアカウント限流名単の集計を提供する。
// すべての指標は呼び出しのたびに投稿レコード集合から全量再計算する。
// 増分更新は行わない（直近の取得バッチと常に整合させるため）。
package analytics

import (
	"math"
	"sort"

	"github.com/hitoshi/reachscan/internal/classifier"
	"github.com/hitoshi/reachscan/internal/model"
)

// growthTrendMinPosts は増長トレンドの算出に必要な最小投稿数。
const growthTrendMinPosts = 4

// Aggregate は投稿レコード集合からアカウントごとの派生指標を計算する。
// verdictsはrecordsと同じ長さ・同じ並びの投稿ごとの限流判定。
// 出力はアカウントハンドルの昇順。
func Aggregate(records []model.PostRecord, verdicts []model.ThrottleVerdict) []model.AccountAnalytics {
	groups, order := groupByHandle(records, verdicts)

	result := make([]model.AccountAnalytics, 0, len(order))
	for _, handle := range order {
		g := groups[handle]
		result = append(result, aggregateAccount(handle, g))
	}
	return result
}

// BuildAccountVerdicts は投稿レコード集合からアカウント単位の限流判定を導出する。
// 出力はアカウントハンドルの昇順。
func BuildAccountVerdicts(records []model.PostRecord, verdicts []model.ThrottleVerdict) []model.AccountVerdict {
	groups, order := groupByHandle(records, verdicts)

	result := make([]model.AccountVerdict, 0, len(order))
	for _, handle := range order {
		g := groups[handle]
		result = append(result, buildVerdict(handle, g))
	}
	return result
}

// accountGroup は1アカウント分の投稿と判定をまとめたもの。
type accountGroup struct {
	posts    []model.PostRecord
	verdicts []model.ThrottleVerdict
}

// groupByHandle はレコードをアカウントハンドルごとにまとめる。
// 各アカウント内の投稿順序は入力順（= API順）を保存する。
func groupByHandle(records []model.PostRecord, verdicts []model.ThrottleVerdict) (map[string]*accountGroup, []string) {
	groups := make(map[string]*accountGroup)
	var order []string

	for i, rec := range records {
		g, ok := groups[rec.AccountHandle]
		if !ok {
			g = &accountGroup{}
			groups[rec.AccountHandle] = g
			order = append(order, rec.AccountHandle)
		}
		g.posts = append(g.posts, rec)
		if i < len(verdicts) {
			g.verdicts = append(g.verdicts, verdicts[i])
		} else {
			g.verdicts = append(g.verdicts, classifier.ClassifyPost(rec))
		}
	}

	sort.Strings(order)
	return groups, order
}

// aggregateAccount は1アカウント分の派生指標を計算する。
func aggregateAccount(handle string, g *accountGroup) model.AccountAnalytics {
	n := len(g.posts)
	first := g.posts[0]

	// ゼロ除算を避けるためフォロワー数は1を下限とする
	followers := first.FollowerCount
	if followers < 1 {
		followers = 1
	}

	var (
		sumRate       float64
		sumEngagement int64
		sumDeep       int64
		sumPlay       int64
	)
	plays := make([]float64, n)
	for i, p := range g.posts {
		engagement := p.Engagement()
		sumRate += float64(engagement) / float64(p.PlayCount+1)
		sumEngagement += engagement
		sumDeep += p.CommentCount + p.CollectCount
		sumPlay += p.PlayCount
		plays[i] = float64(p.PlayCount)
	}

	meanPlay := float64(sumPlay) / float64(n)

	stability := 0.0
	if n > 1 && meanPlay > 0 {
		stability = stddev(plays, meanPlay) / meanPlay
	}

	depth := 0.0
	if sumEngagement > 0 {
		depth = float64(sumDeep) / float64(sumEngagement)
	}

	suppressed, suspected, normal := countVerdicts(g.verdicts)

	return model.AccountAnalytics{
		AccountHandle:      handle,
		DisplayName:        first.DisplayName,
		FollowerCount:      first.FollowerCount,
		PostCount:          n,
		AvgPlayCount:       meanPlay,
		EngagementRate:     sumRate / float64(n),
		FollowerEfficiency: float64(sumEngagement) / float64(followers),
		ContentStability:   stability,
		GrowthTrend:        growthTrend(g.posts),
		EngagementDepth:    depth,
		SuppressedCount:    suppressed,
		SuspectedCount:     suspected,
		NormalCount:        normal,
		ThrottleRatio:      float64(suppressed+suspected) / float64(n),
	}
}

// buildVerdict は1アカウント分の限流判定を導出する。
func buildVerdict(handle string, g *accountGroup) model.AccountVerdict {
	n := len(g.posts)
	first := g.posts[0]

	suppressed, suspected, normal := countVerdicts(g.verdicts)
	suppressedRate := float64(suppressed) / float64(n)
	suspectedRate := float64(suspected) / float64(n)
	throttledRate := float64(suppressed+suspected) / float64(n)

	var sumPlay int64
	var sumRate float64
	for _, p := range g.posts {
		sumPlay += p.PlayCount
		sumRate += classifier.EngagementRate(p.PlayCount, p.LikeCount, p.CommentCount, p.CollectCount)
	}
	avgPlay := float64(sumPlay) / float64(n)
	avgRate := sumRate / float64(n)

	status, tier := classifier.ClassifyAccount(g.verdicts)

	return model.AccountVerdict{
		AccountHandle:     handle,
		DisplayName:       first.DisplayName,
		FollowerCount:     first.FollowerCount,
		Status:            status,
		RiskTier:          tier,
		PostCount:         n,
		SuppressedCount:   suppressed,
		SuspectedCount:    suspected,
		NormalCount:       normal,
		SuppressedRate:    suppressedRate,
		SuspectedRate:     suspectedRate,
		ThrottledRate:     throttledRate,
		AvgPlayCount:      avgPlay,
		AvgEngagementRate: avgRate,
		ReasonCodes:       classifier.ReasonCodes(suppressedRate, suspectedRate, avgPlay, avgRate),
	}
}

// countVerdicts は判定の内訳を数える。
func countVerdicts(verdicts []model.ThrottleVerdict) (suppressed, suspected, normal int) {
	for _, v := range verdicts {
		switch v {
		case model.VerdictSuppressed:
			suppressed++
		case model.VerdictSuspected:
			suspected++
		default:
			normal++
		}
	}
	return suppressed, suspected, normal
}

// growthTrend は発行時刻で並べた最新2件と最古2件の平均再生数の比から
// 増長トレンドを計算する。投稿が4件未満、または最古2件の平均が0の場合は0。
// 発行時刻が欠落している投稿は最古側として扱う。
func growthTrend(posts []model.PostRecord) float64 {
	if len(posts) < growthTrendMinPosts {
		return 0
	}

	sorted := make([]model.PostRecord, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	latest := (float64(sorted[0].PlayCount) + float64(sorted[1].PlayCount)) / 2
	last := len(sorted) - 1
	earliest := (float64(sorted[last].PlayCount) + float64(sorted[last-1].PlayCount)) / 2

	if earliest == 0 {
		return 0
	}
	return (latest - earliest) / earliest
}

// stddev は不偏標準偏差（n-1除算）を計算する。len(values) >= 2 が前提。
func stddev(values []float64, mean float64) float64 {
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

package model

// ThrottleVerdict は投稿1件の限流（配信抑制）判定。
type ThrottleVerdict string

const (
	// VerdictSuppressed は明確な限流状態。
	VerdictSuppressed ThrottleVerdict = "suppressed"
	// VerdictSuspected は疑似限流状態。
	VerdictSuspected ThrottleVerdict = "suspected"
	// VerdictNormal は正常状態。
	VerdictNormal ThrottleVerdict = "normal"
)

// RiskTier はアカウント限流判定に付与するリスク等級。
type RiskTier string

const (
	// RiskHigh は高リスク。
	RiskHigh RiskTier = "high"
	// RiskMedium は中リスク。
	RiskMedium RiskTier = "medium"
	// RiskLow は低リスク。
	RiskLow RiskTier = "low"
)

// ReasonCode はアカウント限流判定の定性的な理由コード。
type ReasonCode string

const (
	// ReasonNearZeroPlays は大量の投稿の再生数が極端に低いことを示す。
	ReasonNearZeroPlays ReasonCode = "many_posts_near_zero_plays"
	// ReasonAbnormalEngagement は多数の投稿のエンゲージメント率が異常であることを示す。
	ReasonAbnormalEngagement ReasonCode = "abnormal_engagement_on_majority"
	// ReasonLowReach は全体の平均再生数が低いことを示す。
	ReasonLowReach ReasonCode = "overall_low_reach"
	// ReasonEngagementShortfall はエンゲージメント率が著しく不足していることを示す。
	ReasonEngagementShortfall ReasonCode = "severe_engagement_shortfall"
	// ReasonNoAnomaly は異常が検出されなかったことを示す。
	ReasonNoAnomaly ReasonCode = "no_anomaly"
)

// AccountVerdict はアカウント単位の限流判定。
// 投稿ごとの判定の分布のみから決定的に導出する。
type AccountVerdict struct {
	AccountHandle     string          `json:"account_handle"`
	DisplayName       string          `json:"display_name"`
	FollowerCount     int64           `json:"follower_count"`
	Status            ThrottleVerdict `json:"status"`
	RiskTier          RiskTier        `json:"risk_tier"`
	PostCount         int             `json:"post_count"`
	SuppressedCount   int             `json:"suppressed_count"`
	SuspectedCount    int             `json:"suspected_count"`
	NormalCount       int             `json:"normal_count"`
	SuppressedRate    float64         `json:"suppressed_rate"`
	SuspectedRate     float64         `json:"suspected_rate"`
	ThrottledRate     float64         `json:"throttled_rate"`
	AvgPlayCount      float64         `json:"avg_play_count"`
	AvgEngagementRate float64         `json:"avg_engagement_rate"`
	ReasonCodes       []ReasonCode    `json:"reason_codes"`
}

// AccountAnalytics はアカウント単位の派生指標。
// 呼び出しごとに投稿レコード集合から全量再計算する。
type AccountAnalytics struct {
	AccountHandle      string  `json:"account_handle"`
	DisplayName        string  `json:"display_name"`
	FollowerCount      int64   `json:"follower_count"`
	PostCount          int     `json:"post_count"`
	AvgPlayCount       float64 `json:"avg_play_count"`
	EngagementRate     float64 `json:"engagement_rate"`
	FollowerEfficiency float64 `json:"follower_efficiency"`
	ContentStability   float64 `json:"content_stability"`
	GrowthTrend        float64 `json:"growth_trend"`
	EngagementDepth    float64 `json:"engagement_depth"`
	SuppressedCount    int     `json:"suppressed_count"`
	SuspectedCount     int     `json:"suspected_count"`
	NormalCount        int     `json:"normal_count"`
	ThrottleRatio      float64 `json:"throttle_ratio"`
}

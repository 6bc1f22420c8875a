package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/reachscan/internal/model"
)

// PostgresScanResultRepo はPostgreSQLを使用したスキャン結果リポジトリ。
type PostgresScanResultRepo struct {
	db *sql.DB
}

// NewPostgresScanResultRepo はPostgresScanResultRepoを生成する。
func NewPostgresScanResultRepo(db *sql.DB) *PostgresScanResultRepo {
	return &PostgresScanResultRepo{db: db}
}

// SaveResults はスキャン1回分の結果一式を同一トランザクションで保存する。
// 投稿レコードはseq列で入力順（= API順）を保存する。
func (r *PostgresScanResultRepo) SaveResults(
	ctx context.Context,
	scanID string,
	posts []model.PostRecord,
	verdicts []model.AccountVerdict,
	analytics []model.AccountAnalytics,
	failures []model.ScanFailure,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for seq, p := range posts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_records (scan_id, seq, account_handle, display_name, avatar_url,
			                           following_count, follower_count, total_likes, total_posts,
			                           post_url, published_at, play_count, like_count,
			                           comment_count, collect_count, cover_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			scanID, seq, p.AccountHandle, p.DisplayName, p.AvatarURL,
			p.FollowingCount, p.FollowerCount, p.TotalLikes, p.TotalPosts,
			p.PostURL, nullTime(p.PublishedAt), p.PlayCount, p.LikeCount,
			p.CommentCount, p.CollectCount, p.CoverURL,
		); err != nil {
			return fmt.Errorf("投稿レコードの保存に失敗しました: %w", err)
		}
	}

	for _, v := range verdicts {
		reasons := make([]string, len(v.ReasonCodes))
		for i, rc := range v.ReasonCodes {
			reasons[i] = string(rc)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO account_verdicts (scan_id, account_handle, display_name, follower_count,
			                               status, risk_tier, post_count,
			                               suppressed_count, suspected_count, normal_count,
			                               suppressed_rate, suspected_rate, throttled_rate,
			                               avg_play_count, avg_engagement_rate, reason_codes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			scanID, v.AccountHandle, v.DisplayName, v.FollowerCount,
			v.Status, v.RiskTier, v.PostCount,
			v.SuppressedCount, v.SuspectedCount, v.NormalCount,
			v.SuppressedRate, v.SuspectedRate, v.ThrottledRate,
			v.AvgPlayCount, v.AvgEngagementRate, pq.Array(reasons),
		); err != nil {
			return fmt.Errorf("アカウント判定の保存に失敗しました: %w", err)
		}
	}

	for _, a := range analytics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO account_analytics (scan_id, account_handle, display_name, follower_count,
			                                post_count, avg_play_count, engagement_rate,
			                                follower_efficiency, content_stability, growth_trend,
			                                engagement_depth, suppressed_count, suspected_count,
			                                normal_count, throttle_ratio)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			scanID, a.AccountHandle, a.DisplayName, a.FollowerCount,
			a.PostCount, a.AvgPlayCount, a.EngagementRate,
			a.FollowerEfficiency, a.ContentStability, a.GrowthTrend,
			a.EngagementDepth, a.SuppressedCount, a.SuspectedCount,
			a.NormalCount, a.ThrottleRatio,
		); err != nil {
			return fmt.Errorf("アカウント指標の保存に失敗しました: %w", err)
		}
	}

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scan_failures (scan_id, account_handle, reason_code, message)
			 VALUES ($1, $2, $3, $4)`,
			scanID, f.AccountHandle, f.ReasonCode, f.Message,
		); err != nil {
			return fmt.Errorf("失敗記録の保存に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// ListPostsByScanID はスキャンの投稿レコードを保存順で取得する。
func (r *PostgresScanResultRepo) ListPostsByScanID(ctx context.Context, scanID string) ([]model.PostRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_handle, display_name, avatar_url,
		        following_count, follower_count, total_likes, total_posts,
		        post_url, published_at, play_count, like_count,
		        comment_count, collect_count, cover_url
		 FROM post_records WHERE scan_id = $1 ORDER BY seq`,
		scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿レコードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []model.PostRecord
	for rows.Next() {
		var p model.PostRecord
		var publishedAt sql.NullTime

		if err := rows.Scan(
			&p.AccountHandle, &p.DisplayName, &p.AvatarURL,
			&p.FollowingCount, &p.FollowerCount, &p.TotalLikes, &p.TotalPosts,
			&p.PostURL, &publishedAt, &p.PlayCount, &p.LikeCount,
			&p.CommentCount, &p.CollectCount, &p.CoverURL,
		); err != nil {
			return nil, fmt.Errorf("投稿レコード行の読み取りに失敗しました: %w", err)
		}

		p.PublishedAt = nullTimeValue(publishedAt)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿レコードの走査に失敗しました: %w", err)
	}

	return posts, nil
}

// ListVerdictsByScanID はスキャンのアカウント判定をハンドル昇順で取得する。
func (r *PostgresScanResultRepo) ListVerdictsByScanID(ctx context.Context, scanID string) ([]model.AccountVerdict, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_handle, display_name, follower_count,
		        status, risk_tier, post_count,
		        suppressed_count, suspected_count, normal_count,
		        suppressed_rate, suspected_rate, throttled_rate,
		        avg_play_count, avg_engagement_rate, reason_codes
		 FROM account_verdicts WHERE scan_id = $1 ORDER BY account_handle`,
		scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("アカウント判定の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var verdicts []model.AccountVerdict
	for rows.Next() {
		var v model.AccountVerdict
		var reasons pq.StringArray

		if err := rows.Scan(
			&v.AccountHandle, &v.DisplayName, &v.FollowerCount,
			&v.Status, &v.RiskTier, &v.PostCount,
			&v.SuppressedCount, &v.SuspectedCount, &v.NormalCount,
			&v.SuppressedRate, &v.SuspectedRate, &v.ThrottledRate,
			&v.AvgPlayCount, &v.AvgEngagementRate, &reasons,
		); err != nil {
			return nil, fmt.Errorf("アカウント判定行の読み取りに失敗しました: %w", err)
		}

		v.ReasonCodes = make([]model.ReasonCode, len(reasons))
		for i, rc := range reasons {
			v.ReasonCodes[i] = model.ReasonCode(rc)
		}
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アカウント判定の走査に失敗しました: %w", err)
	}

	return verdicts, nil
}

// ListAnalyticsByScanID はスキャンのアカウント指標をハンドル昇順で取得する。
func (r *PostgresScanResultRepo) ListAnalyticsByScanID(ctx context.Context, scanID string) ([]model.AccountAnalytics, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_handle, display_name, follower_count,
		        post_count, avg_play_count, engagement_rate,
		        follower_efficiency, content_stability, growth_trend,
		        engagement_depth, suppressed_count, suspected_count,
		        normal_count, throttle_ratio
		 FROM account_analytics WHERE scan_id = $1 ORDER BY account_handle`,
		scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("アカウント指標の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var analytics []model.AccountAnalytics
	for rows.Next() {
		var a model.AccountAnalytics

		if err := rows.Scan(
			&a.AccountHandle, &a.DisplayName, &a.FollowerCount,
			&a.PostCount, &a.AvgPlayCount, &a.EngagementRate,
			&a.FollowerEfficiency, &a.ContentStability, &a.GrowthTrend,
			&a.EngagementDepth, &a.SuppressedCount, &a.SuspectedCount,
			&a.NormalCount, &a.ThrottleRatio,
		); err != nil {
			return nil, fmt.Errorf("アカウント指標行の読み取りに失敗しました: %w", err)
		}

		analytics = append(analytics, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アカウント指標の走査に失敗しました: %w", err)
	}

	return analytics, nil
}

// ListFailuresByScanID はスキャンの失敗一覧を取得する。
func (r *PostgresScanResultRepo) ListFailuresByScanID(ctx context.Context, scanID string) ([]model.ScanFailure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT scan_id, account_handle, reason_code, message
		 FROM scan_failures WHERE scan_id = $1 ORDER BY account_handle`,
		scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("失敗記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var failures []model.ScanFailure
	for rows.Next() {
		var f model.ScanFailure
		if err := rows.Scan(&f.ScanID, &f.AccountHandle, &f.ReasonCode, &f.Message); err != nil {
			return nil, fmt.Errorf("失敗記録行の読み取りに失敗しました: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("失敗記録の走査に失敗しました: %w", err)
	}

	return failures, nil
}

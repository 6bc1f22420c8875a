// Package fetcher は単一アカウントの取得パイプライン（プロフィール+投稿）を提供する。
// 上流APIの一時的な失敗は固定バックオフでリトライし、
// 分類済みエラー（tikwm.FetchError）を呼び出し元へそのまま返す。
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/reachscan/internal/cache"
	"github.com/hitoshi/reachscan/internal/metrics"
	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/security"
	"github.com/hitoshi/reachscan/internal/tikwm"
)

// APIClient は上流APIクライアントのインターフェース。
// テストではフェイク実装に差し替える。
type APIClient interface {
	GetUserInfo(ctx context.Context, handle string) (*tikwm.UserInfoResponse, error)
	GetUserPosts(ctx context.Context, handle string) (*tikwm.UserPostsResponse, error)
}

// Fetcher はアカウント1件分の取得処理を担う。
type Fetcher struct {
	client    APIClient
	cache     *cache.ProfileCache
	sanitizer security.NameSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error // テスト用に差し替え可能
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	client APIClient,
	profileCache *cache.ProfileCache,
	sanitizer security.NameSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Fetcher {
	return &Fetcher{
		client:    client,
		cache:     profileCache,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// FetchProfile はアカウントの公開プロフィールを取得する。
// キャッシュに有効なエントリがあればネットワーク呼び出しを省略する。
// 失敗時は分類済みエラーを返す（ゼロ値への縮退は呼び出し元の責務）。
func (f *Fetcher) FetchProfile(ctx context.Context, handle string) (model.ProfileInfo, error) {
	if info, ok := f.cache.Get(handle); ok {
		f.metrics.RecordCacheHit()
		return info, nil
	}
	f.metrics.RecordCacheMiss()

	var resp *tikwm.UserInfoResponse
	err := f.withRetry(ctx, handle, "user_info", func() error {
		var callErr error
		resp, callErr = f.client.GetUserInfo(ctx, handle)
		return callErr
	})
	if err != nil {
		return model.ProfileInfo{}, err
	}

	info := model.ProfileInfo{
		DisplayName:    f.sanitizer.SanitizeName(resp.Data.User.Nickname),
		AvatarURL:      resp.Data.User.Avatar(),
		FollowingCount: resp.Data.Stats.FollowingCount,
		FollowerCount:  resp.Data.Stats.FollowerCount,
		TotalLikes:     resp.Data.Stats.TotalLikes(),
		TotalPosts:     resp.Data.Stats.VideoCount,
	}
	f.cache.Put(handle, info)
	return info, nil
}

// FetchPosts はアカウントの直近の投稿をlimit件まで取得し、
// プロフィールスナップショットを各レコードに複製して返す。
// 投稿の並び順は上流APIの順序を保存する。
//
// プロフィール取得の失敗は投稿取得を失敗させない。
// その場合は投稿に埋め込まれた著者情報から表示名とアバターを補完し、
// 統計フィールドはゼロ値のまま出力する（行を落とさない方針）。
func (f *Fetcher) FetchPosts(ctx context.Context, handle string, limit int) ([]model.PostRecord, error) {
	if limit < model.MinPostLimit {
		limit = model.MinPostLimit
	}
	if limit > model.MaxPostLimit {
		limit = model.MaxPostLimit
	}

	var resp *tikwm.UserPostsResponse
	err := f.withRetry(ctx, handle, "user_posts", func() error {
		var callErr error
		resp, callErr = f.client.GetUserPosts(ctx, handle)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	videos := resp.Data.Videos
	if len(videos) > limit {
		videos = videos[:limit]
	}

	profile := f.profileForPosts(ctx, handle, videos)

	records := make([]model.PostRecord, 0, len(videos))
	for _, v := range videos {
		rec := model.PostRecord{
			AccountHandle:  handle,
			DisplayName:    profile.DisplayName,
			AvatarURL:      profile.AvatarURL,
			FollowingCount: profile.FollowingCount,
			FollowerCount:  profile.FollowerCount,
			TotalLikes:     profile.TotalLikes,
			TotalPosts:     profile.TotalPosts,
			PostURL:        fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", handle, v.VideoID),
			PlayCount:      v.PlayCount,
			LikeCount:      v.DiggCount,
			CommentCount:   v.CommentCount,
			CollectCount:   v.CollectCount,
			CoverURL:       v.Cover,
		}
		if v.CreateTime > 0 {
			rec.PublishedAt = time.Unix(v.CreateTime, 0).UTC()
		}
		records = append(records, rec)
	}

	f.metrics.RecordPostsFetched(len(records))
	return records, nil
}

// profileForPosts は投稿レコードに複製するプロフィールを決定する。
// 投稿の著者ブロックにフォロワー数等の統計が揃っていれば別呼び出しを省略するが、
// tikwmの著者ブロックは統計を含まないため通常はプロフィール呼び出しに進む。
// プロフィール呼び出しが失敗した場合は著者ブロックから表示情報のみ補完する。
func (f *Fetcher) profileForPosts(ctx context.Context, handle string, videos []tikwm.Video) model.ProfileInfo {
	profile, err := f.FetchProfile(ctx, handle)
	if err == nil {
		return profile
	}

	f.logger.Warn("プロフィール取得に失敗したため投稿の著者情報で補完します",
		slog.String("handle", handle),
		slog.String("error", err.Error()),
	)

	var fallback model.ProfileInfo
	if len(videos) > 0 {
		fallback.DisplayName = f.sanitizer.SanitizeName(videos[0].Author.Nickname)
		fallback.AvatarURL = videos[0].Author.Avatar
	}
	return fallback
}

// ProbeAccountStatus は上流APIに1回だけ問い合わせてアカウント状態を診断する。
// 「空の成功」と本当の失敗を区別するためのもので、リトライはしない。
func (f *Fetcher) ProbeAccountStatus(ctx context.Context, handle string) model.ProbeResult {
	result := model.ProbeResult{AccountHandle: handle}

	_, err := f.client.GetUserInfo(ctx, handle)
	if err == nil {
		result.Kind = model.ProbeOK
		return result
	}

	fe := tikwm.AsFetchError(err)
	switch fe.Kind {
	case tikwm.KindHTTPError:
		result.Kind = model.ProbeHTTPError
		result.StatusCode = fe.StatusCode
	case tikwm.KindAPIError:
		result.Kind = model.ProbeAPIError
		result.APICode = fe.APICode
	default:
		result.Kind = model.ProbeNetworkError
	}
	result.Message = fe.Error()
	return result
}

// withRetry は一時的な失敗を固定バックオフでリトライする。
// メトリクスにはレイテンシと上流ステータスを記録する。
func (f *Fetcher) withRetry(ctx context.Context, handle, operation string, call func() error) error {
	start := time.Now()
	defer func() {
		f.metrics.RecordFetchLatency(time.Since(start))
	}()

	var err error
	for attempt := 0; ; attempt++ {
		err = call()
		if err == nil {
			f.metrics.RecordHTTPStatus(200)
			return nil
		}

		fe := tikwm.AsFetchError(err)
		if fe.Kind == tikwm.KindHTTPError {
			f.metrics.RecordHTTPStatus(fe.StatusCode)
		}

		if !ShouldRetry(err, attempt) {
			return err
		}

		f.logger.Info("一時的なエラーのためリトライします",
			slog.String("handle", handle),
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		if sleepErr := f.sleep(ctx, RetryDelay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
}

// sleepContext はコンテキストのキャンセルを尊重して待機する。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package tikwm はtikwm.comのTikTok公開データAPIのクライアントを提供する。
// 上流は信頼できない境界として扱い、HTTP・アプリケーション・トランスポートの
// 3種類の失敗を分類済みエラー（FetchError）として返す。
package tikwm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// DefaultBaseURL はtikwm APIの既定のベースURL。
const DefaultBaseURL = "https://www.tikwm.com"

// maxResponseSize はレスポンスボディの読み取り上限（バイト）。
const maxResponseSize = 4 << 20

// Client はtikwm APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// GetUserInfo はアカウントの公開プロフィールを取得する。
// 失敗時は*FetchErrorを返す。
func (c *Client) GetUserInfo(ctx context.Context, handle string) (*UserInfoResponse, error) {
	var resp UserInfoResponse
	if err := c.getJSON(ctx, "/api/user/info", handle, &resp); err != nil {
		return nil, err
	}

	if resp.Code != 0 || resp.Data == nil {
		apiErr := &FetchError{Kind: KindAPIError, APICode: resp.Code, Msg: resp.Msg}
		c.logger.Warn("ユーザー情報APIがエラーコードを返しました",
			slog.String("handle", handle),
			slog.Int("api_code", resp.Code),
			slog.String("api_msg", resp.Msg),
		)
		return nil, apiErr
	}

	return &resp, nil
}

// GetUserPosts はアカウントの直近の投稿一覧を取得する。
// 投稿の並び順は上流APIの順序をそのまま保存する。
// 失敗時は*FetchErrorを返す。
func (c *Client) GetUserPosts(ctx context.Context, handle string) (*UserPostsResponse, error) {
	var resp UserPostsResponse
	if err := c.getJSON(ctx, "/api/user/posts", handle, &resp); err != nil {
		return nil, err
	}

	if resp.Code != 0 || resp.Data == nil {
		apiErr := &FetchError{Kind: KindAPIError, APICode: resp.Code, Msg: resp.Msg}
		c.logger.Warn("投稿一覧APIがエラーコードを返しました",
			slog.String("handle", handle),
			slog.Int("api_code", resp.Code),
			slog.String("api_msg", resp.Msg),
		)
		return nil, apiErr
	}

	return &resp, nil
}

// getJSON は共通のGET+JSONデコード処理。
func (c *Client) getJSON(ctx context.Context, path, handle string, out any) error {
	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("unique_id", handle)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Reachscan/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// コンテキスト起因のキャンセルはそのまま伝播させる
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		return newNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("上流APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.String("handle", handle),
			slog.Int("http_status", resp.StatusCode),
		)
		return &FetchError{Kind: KindHTTPError, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return newNetworkError(err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("上流APIレスポンスのパースに失敗しました",
			slog.String("path", path),
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		return &FetchError{Kind: KindNetworkError, Msg: "不正なレスポンス形式", Err: err}
	}

	return nil
}

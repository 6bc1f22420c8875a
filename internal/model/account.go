// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"strings"
	"time"
)

// handlePattern はTikTokアカウントハンドルの許容形式。
// 英数字・ピリオド・アンダースコアのみ、1〜24文字。
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,24}$`)

// NormalizeHandle はハンドル文字列の前後の空白と先頭の@を除去する。
func NormalizeHandle(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "@")
}

// ValidateHandle はハンドルが許容形式を満たすかを検証する。
// ネットワーク呼び出しの前に必ず検証すること。
func ValidateHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

// ProfileInfo はアカウントの公開プロフィールのスナップショット。
// 数値フィールドは取得不能時に0とする（nullにはしない）。
// データなしのアカウントも0埋めの行として可視化する方針。
type ProfileInfo struct {
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
	FollowingCount int64  `json:"following_count"`
	FollowerCount  int64  `json:"follower_count"`
	TotalLikes     int64  `json:"total_likes"`
	TotalPosts     int64  `json:"total_posts"`
}

// PostRecord は取得済み投稿1件のレコード。
// 所有アカウントのプロフィールスナップショットを各行に複製して持つ
// （下流のテーブル出力がJOIN不要で扱えるようにするため）。
// 作成後はイミュータブルとして扱う。
type PostRecord struct {
	AccountHandle  string    `json:"account_handle"`
	DisplayName    string    `json:"display_name"`
	AvatarURL      string    `json:"avatar_url"`
	FollowingCount int64     `json:"following_count"`
	FollowerCount  int64     `json:"follower_count"`
	TotalLikes     int64     `json:"total_likes"`
	TotalPosts     int64     `json:"total_posts"`
	PostURL        string    `json:"post_url"`
	PublishedAt    time.Time `json:"published_at,omitzero"`
	PlayCount      int64     `json:"play_count"`
	LikeCount      int64     `json:"like_count"`
	CommentCount   int64     `json:"comment_count"`
	CollectCount   int64     `json:"collect_count"`
	CoverURL       string    `json:"cover_url"`
}

// Engagement は投稿の総エンゲージメント（いいね+コメント+保存）を返す。
func (p PostRecord) Engagement() int64 {
	return p.LikeCount + p.CommentCount + p.CollectCount
}

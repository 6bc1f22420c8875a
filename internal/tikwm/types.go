package tikwm

// envelope はtikwm APIの共通レスポンス形式。
// code == 0 が成功、それ以外はアプリケーションレベルのエラーでmsgに理由が入る。
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// UserInfoResponse は GET /api/user/info のレスポンス。
type UserInfoResponse struct {
	envelope
	Data *UserInfoData `json:"data"`
}

// UserInfoData はユーザー情報のペイロード。
type UserInfoData struct {
	User  UserBlock  `json:"user"`
	Stats StatsBlock `json:"stats"`
}

// UserBlock はユーザーの表示情報。
type UserBlock struct {
	Nickname     string `json:"nickname"`
	AvatarMedium string `json:"avatarMedium"`
	AvatarThumb  string `json:"avatarThumb"`
}

// Avatar は利用可能なアバターURLを返す（Medium優先、なければThumb）。
func (u UserBlock) Avatar() string {
	if u.AvatarMedium != "" {
		return u.AvatarMedium
	}
	return u.AvatarThumb
}

// StatsBlock はユーザーの統計情報。
// 獲得いいね数はheartCountまたはheartのどちらかで返ることがある。
type StatsBlock struct {
	FollowingCount int64 `json:"followingCount"`
	FollowerCount  int64 `json:"followerCount"`
	HeartCount     int64 `json:"heartCount"`
	Heart          int64 `json:"heart"`
	VideoCount     int64 `json:"videoCount"`
}

// TotalLikes は獲得いいね数を返す（heartCount優先）。
func (s StatsBlock) TotalLikes() int64 {
	if s.HeartCount != 0 {
		return s.HeartCount
	}
	return s.Heart
}

// UserPostsResponse は GET /api/user/posts のレスポンス。
type UserPostsResponse struct {
	envelope
	Data *UserPostsData `json:"data"`
}

// UserPostsData は投稿一覧のペイロード。
type UserPostsData struct {
	Videos []Video `json:"videos"`
}

// Video は投稿1件の生データ。
// authorブロックは投稿ごとに埋め込まれるが、フォロワー数等の統計は含まれない。
type Video struct {
	VideoID      string      `json:"video_id"`
	CreateTime   int64       `json:"create_time"`
	PlayCount    int64       `json:"play_count"`
	DiggCount    int64       `json:"digg_count"`
	CommentCount int64       `json:"comment_count"`
	CollectCount int64       `json:"collect_count"`
	Cover        string      `json:"cover"`
	Author       VideoAuthor `json:"author"`
}

// VideoAuthor は投稿に埋め込まれる著者情報。
type VideoAuthor struct {
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// NameSanitizerService は上流APIから取得した表示名のサニタイズ機能を定義する。
//
// tikwm APIのnicknameフィールドは利用者が自由に設定できる文字列であり、
// HTMLタグやスクリプト片が混入し得る。保存前およびAPI応答前に
// 全タグを除去したプレーンテキストへ正規化する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名サニタイズのインターフェース。
type NameSanitizerService interface {
	// SanitizeName は表示名から全HTMLタグを除去し、前後の空白を落とす。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeName(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// 表示名は装飾を許す理由がないため、タグを一切許可しないStrictPolicyを使う。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName は表示名から全HTMLタグを除去し、前後の空白を落とす。
func (s *nameSanitizer) SanitizeName(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

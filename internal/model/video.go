// Package model はドメインモデルを定義する。
package model

// VideoID はYouTubeが動画に割り当てる11文字の識別子。
// [a-zA-Z0-9_-] の文字のみで構成される。
type VideoID string

// String はfmt.Stringerを実装する。
func (id VideoID) String() string {
	return string(id)
}

// SummaryStatus は要約取得結果の種別。
type SummaryStatus string

const (
	// SummaryPending は取得中。
	SummaryPending SummaryStatus = "pending"
	// SummarySuccess は取得成功。
	SummarySuccess SummaryStatus = "success"
	// SummaryFailure は取得失敗。
	SummaryFailure SummaryStatus = "failure"
)

// SummaryResult は1つのVideoIDリクエストに対応する要約取得結果。
// 取得開始時に生成し、完了時に丸ごと置き換える。
type SummaryResult struct {
	VideoID VideoID
	Status  SummaryStatus
	Text    string
	Err     error
}

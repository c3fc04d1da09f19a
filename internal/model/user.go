// Package model はドメインモデルを定義する。
package model

// User は認証ゲートウェイが返すユーザー情報を表す。
type User struct {
	AvatarURL   string
	DisplayName string
	Email       string
}

// AuthSession はサインイン成功時に認証ゲートウェイが発行するセッション。
// 永続化するのはRefreshTokenのみで、その他はレスポンス表示にのみ使う。
type AuthSession struct {
	AccessToken          string
	AccessTokenExpiresIn int
	RefreshToken         string
	RefreshTokenID       string
	User                 User
}

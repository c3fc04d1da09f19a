package handler

import (
	"net/http"

	"github.com/hitoshi/decodetube/internal/auth"
)

const (
	// flashCookieName はリダイレクト後に1度だけ表示する通知を保持するCookieの名前。
	flashCookieName = "flash"

	// flashMaxAge は通知Cookieの有効期間（秒）。
	flashMaxAge = 60
)

// 通知コード。Cookieにはメッセージ本文ではなくコードのみを保存する。
const (
	flashLogin  = "login"
	flashLogout = "logout"
	flashSignUp = "signup"
)

// flashMessages は通知コードから表示メッセージへの対応。
var flashMessages = map[string]string{
	flashLogin:  auth.MessageLoginSuccess,
	flashLogout: auth.MessageLogoutSuccess,
	flashSignUp: auth.MessageSignUpSuccess,
}

// setFlash は次のページ表示で出す通知を設定する。
func setFlash(w http.ResponseWriter, code string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    code,
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash は通知を読み出して削除する。未知のコードは無視する。
func popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	return flashMessages[cookie.Value]
}

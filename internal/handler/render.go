package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/decodetube/internal/middleware"
	"github.com/hitoshi/decodetube/internal/session"
	"github.com/hitoshi/decodetube/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名。
const (
	pageHome  = "home"
	pageVideo = "video"
)

// 認証フォームの表示モード。
const (
	authModeLogin  = "login"
	authModeSignUp = "signup"
)

// pageData はレイアウトと各ページのテンプレートに渡す値。
type pageData struct {
	CSRFField string
	CSRFToken string
	LoggedIn  bool

	AuthMode  string // login | signup
	AuthEmail string // 失敗時の再表示用。パスワードは保持しない
	AuthError string
	ReturnTo  string

	Notice string
	Prompt string
	URL    string

	View *videoView
}

// videoView は結果ビューの表示用の値。
type videoView struct {
	State   string
	RawURL  string
	VideoID string
	Summary string
	Message string
}

// newVideoView はSnapshotを表示用の値に変換する。
func newVideoView(snap view.Snapshot) *videoView {
	return &videoView{
		State:   snap.State.String(),
		RawURL:  snap.RawURL,
		VideoID: snap.VideoID.String(),
		Summary: snap.Summary,
		Message: snap.Message,
	}
}

// renderer は埋め込みテンプレートからHTMLページを描画する。
type renderer struct {
	pages map[string]*template.Template
}

// newRenderer はレイアウトと各ページを組み合わせたテンプレートを構築する。
// テンプレートはバイナリに埋め込まれているため、構文エラーは起動時にpanicとする。
func newRenderer() *renderer {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageHome, pageVideo} {
		pages[name] = template.Must(template.ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		))
	}
	return &renderer{pages: pages}
}

// render はページを描画する。実行エラー時に途中までのHTMLを返さないよう、
// バッファに書き出してからステータスコードとともに送信する。
func (rd *renderer) render(w http.ResponseWriter, status int, page string, data pageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown page template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// newPageData はリクエストのクライアントに対応する共通表示値を組み立てる。
// ログイン状態の取得に失敗した場合は未ログインとして表示する。
func newPageData(r *http.Request, sessions session.Backend) pageData {
	data := pageData{
		CSRFField: middleware.CSRFFormField,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		AuthMode:  authModeLogin,
		ReturnTo:  "/",
	}
	if r.Method == http.MethodGet {
		data.ReturnTo = r.URL.RequestURI()
		if r.URL.Query().Get("auth") == authModeSignUp {
			data.AuthMode = authModeSignUp
		}
	}

	store, err := storeFor(r, sessions)
	if err != nil {
		return data
	}
	loggedIn, err := store.IsLoggedIn(r.Context())
	if err != nil {
		slog.Error("failed to read session state",
			slog.String("client_id", store.ClientID()),
			slog.String("error", err.Error()),
		)
		return data
	}
	data.LoggedIn = loggedIn
	return data
}

// storeFor はリクエストのクライアントIDをスコープとするsession.Storeを返す。
func storeFor(r *http.Request, sessions session.Backend) (*session.Store, error) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return session.NewStore(sessions, clientID), nil
}

// safeReturnPath はオープンリダイレクトを防ぐため、同一オリジンの絶対パスのみを許可する。
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}

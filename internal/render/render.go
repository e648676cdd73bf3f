// Package render はサーバーサイドHTMLレンダリングを提供する。
// テンプレートはバイナリに埋め込まれ、起動時に一括パースされる。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/askboard/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames はレイアウトと組み合わせてパースするページテンプレートの一覧。
var pageNames = []string{
	"home",
	"login",
	"register",
	"question",
	"new_question",
	"error",
}

// PageData は全ページ共通のテンプレートデータ。
type PageData struct {
	Title       string
	CurrentUser *model.User
	Success     []string
	Error       []string
	CSRFToken   string
	Data        any
}

// Engine はパース済みテンプレートを保持するレンダリングエンジン。
// パースは起動時に1回だけ行われ、以降はスレッドセーフに使用できる。
type Engine struct {
	pages map[string]*template.Template
}

// NewEngine は埋め込みテンプレートをパースしてEngineを生成する。
// テンプレートの構文エラーは起動時に検出される。
func NewEngine() (*Engine, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		// 保存時にサニタイズ済みの本文HTMLをエスケープせずに描画する。
		// 未サニタイズの文字列には使用しないこと。
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(
			templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
		}
		pages[name] = t
	}

	return &Engine{pages: pages}, nil
}

// Render は指定ページをレイアウト込みでレンダリングする。
// テンプレート実行エラー時は途中出力を防ぐため、バッファ経由で書き込む。
func (e *Engine) Render(w http.ResponseWriter, status int, page string, data *PageData) {
	tmpl, ok := e.pages[page]
	if !ok {
		slog.Error("unknown template page", slog.String("page", page))
		http.Error(w, "内部エラーが発生しました。", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to execute template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "内部エラーが発生しました。", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// RenderError はAppErrorをエラーページとしてレンダリングする。
// AppError以外のエラーは内部エラーとして扱い、詳細はログのみに記録する。
func (e *Engine) RenderError(w http.ResponseWriter, err error, user *model.User) {
	appErr := model.AsAppError(err)
	e.Render(w, appErr.Status, "error", &PageData{
		Title:       "エラー",
		CurrentUser: user,
		Data:        appErr,
	})
}

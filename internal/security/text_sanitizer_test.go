package security

import (
	"strings"
	"testing"
)

// TestSanitize_StripsMarkup はタグが除去されテキストが残ることを検証する。
func TestSanitize_StripsMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "A summary of the video.",
			want:  "A summary of the video.",
		},
		{
			name:  "pタグは除去される",
			input: "<p>Summary</p>",
			want:  "Summary",
		},
		{
			name:  "リンクはテキストのみ残る",
			input: `Click <a href="https://example.com">here</a>`,
			want:  "Click here",
		},
		{
			name:  "実体参照はプレーン文字に戻る",
			input: "Tom &amp; Jerry",
			want:  "Tom & Jerry",
		},
		{
			name:  "前後の空白はトリムされる",
			input: "  <b>bold</b>\n",
			want:  "bold",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_RemovesScripts はscriptやイベント属性が残らないことを検証する。
func TestSanitize_RemovesScripts(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{
		`<script>alert('xss')</script>invalid credentials`,
		`<img src=x onerror="alert(1)">invalid credentials`,
		`<iframe src="https://evil.example"></iframe>invalid credentials`,
		`<style>body{display:none}</style>invalid credentials`,
	}

	for _, in := range inputs {
		got := sanitizer.Sanitize(in)
		for _, bad := range []string{"<script", "alert", "onerror", "<iframe", "<style", "display:none"} {
			if strings.Contains(got, bad) {
				t.Errorf("Sanitize(%q) = %q, must not contain %q", in, got, bad)
			}
		}
		if !strings.Contains(got, "invalid credentials") {
			t.Errorf("Sanitize(%q) = %q, lost the message text", in, got)
		}
	}
}

// TestSanitize_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	in := `<em>Email</em> is already in use`

	first := sanitizer.Sanitize(in)
	second := sanitizer.Sanitize(in)
	if first != second {
		t.Errorf("Sanitize not deterministic: %q vs %q", first, second)
	}
	if again := sanitizer.Sanitize(first); again != first {
		t.Errorf("Sanitize(Sanitize(x)) = %q, want %q", again, first)
	}
}

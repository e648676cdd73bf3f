package security

import (
	"strings"
	"testing"
)

var _ ContentSanitizerService = (*contentSanitizer)(nil)

func TestSanitize_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>本文</p><script>alert("xss")</script>`
	got := s.Sanitize(input)

	if strings.Contains(got, "<script>") || strings.Contains(got, "alert") {
		t.Errorf("script should be removed: %q", got)
	}
	if !strings.Contains(got, "<p>本文</p>") {
		t.Errorf("allowed tags should survive: %q", got)
	}
}

func TestSanitize_RemovesIframeAndStyle(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		deny  string
	}{
		{"iframe", `<iframe src="https://evil.example.com"></iframe>`, "<iframe"},
		{"style", `<style>body{display:none}</style>`, "<style"},
		{"object", `<object data="x"></object>`, "<object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if strings.Contains(got, tt.deny) {
				t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, tt.deny)
			}
		})
	}
}

func TestSanitize_RemovesEventHandlers(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p onclick="alert(1)">クリック</p>`
	got := s.Sanitize(input)

	if strings.Contains(got, "onclick") {
		t.Errorf("event handler should be removed: %q", got)
	}
	if !strings.Contains(got, "クリック") {
		t.Errorf("text content should survive: %q", got)
	}
}

func TestSanitize_AllowedTagsPass(t *testing.T) {
	s := NewContentSanitizer()

	input := "<p>段落</p><ul><li>項目</li></ul><blockquote>引用</blockquote><pre><code>x := 1</code></pre><strong>強調</strong><em>斜体</em>"
	got := s.Sanitize(input)

	for _, tag := range []string{"<p>", "<ul>", "<li>", "<blockquote>", "<pre>", "<code>", "<strong>", "<em>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("allowed tag %q should survive: %q", tag, got)
		}
	}
}

func TestSanitize_LinksGetSafeRelAndTarget(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="https://example.com">リンク</a>`)

	if !strings.Contains(got, `href="https://example.com"`) {
		t.Errorf("href should survive: %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("target=_blank should be added: %q", got)
	}
	if !strings.Contains(got, "noopener") || !strings.Contains(got, "noreferrer") {
		t.Errorf("rel should include noopener noreferrer: %q", got)
	}
}

func TestSanitize_JavaScriptURLIsRemoved(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="javascript:alert(1)">x</a>`)
	if strings.Contains(got, "javascript:") {
		t.Errorf("javascript: URL should be removed: %q", got)
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	s := NewContentSanitizer()

	if got := s.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

func TestSanitize_IsIdempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>本文<script>x</script></p><a href="https://example.com">link</a>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("sanitize is not idempotent: %q vs %q", once, twice)
	}
}

func TestSanitizeText_StripsAllTags(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"<b>タイトル</b>", "タイトル"},
		{"<p>段落</p>", "段落"},
		{`<script>alert(1)</script>残り`, "残り"},
		{"プレーンテキスト", "プレーンテキスト"},
	}
	for _, tt := range tests {
		if got := s.SanitizeText(tt.input); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

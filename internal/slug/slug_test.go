package slug

import "testing"

// TestGenerate exercises the slug generator with typical titles,
// special characters, and boundary conditions.
func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// --- Normal titles ---
		{
			name:  "simple two words",
			input: "Hello World",
			want:  "hello-world",
		},
		{
			name:  "title with year",
			input: "Hello World 2026",
			want:  "hello-world-2026",
		},
		{
			name:  "already lowercase",
			input: "already lowercase",
			want:  "already-lowercase",
		},
		{
			name:  "mixed case sentence",
			input: "The Quick Brown Fox",
			want:  "the-quick-brown-fox",
		},

		// --- Special characters become separators ---
		{
			name:  "punctuation marks",
			input: "Hello, World! How's it going?",
			want:  "hello-world-how-s-it-going",
		},
		{
			name:  "ampersand and at sign",
			input: "Rock & Roll @ the Arena",
			want:  "rock-roll-the-arena",
		},
		{
			name:  "version number",
			input: "Version 2.0.1",
			want:  "version-2-0-1",
		},
		{
			name:  "slashes",
			input: "Frontend/Backend",
			want:  "frontend-backend",
		},
		{
			name:  "colon separated title",
			input: "Go: The Complete Developer Guide",
			want:  "go-the-complete-developer-guide",
		},
		{
			name:  "chinese characters act as separators",
			input: "Go 语言 tips",
			want:  "go-tips",
		},

		// --- Whitespace and hyphen handling ---
		{
			name:  "surrounding whitespace trimmed",
			input: "  hello world  ",
			want:  "hello-world",
		},
		{
			name:  "consecutive separators collapsed",
			input: "hello -- , world",
			want:  "hello-world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\tbig\nworld",
			want:  "hello-big-world",
		},
		{
			name:  "single hyphen preserved",
			input: "well-known fact",
			want:  "well-known-fact",
		},

		// --- Edge cases ---
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only special characters",
			input: "!@#$%^&*()",
			want:  "",
		},
		{
			name:  "only hyphens",
			input: "-----",
			want:  "",
		},
		{
			name:  "single character",
			input: "A",
			want:  "a",
		},
		{
			name:  "date-like string",
			input: "2026-02-25",
			want:  "2026-02-25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.input)
			if got != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestGenerate_Idempotent verifies that generating a slug from an
// already valid slug produces the same result.
func TestGenerate_Idempotent(t *testing.T) {
	slugs := []string{
		"hello-world",
		"my-blog-post-2026",
		"a",
		"123",
	}

	for _, s := range slugs {
		t.Run(s, func(t *testing.T) {
			if got := Generate(s); got != s {
				t.Errorf("Generate(%q) = %q, want idempotent result %q", s, got, s)
			}
		})
	}
}

// TestFromTitle verifies pinyin transliteration of Chinese titles.
func TestFromTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "pure chinese title",
			input: "测试文章",
			want:  "ce-shi-wen-zhang",
		},
		{
			name:  "hello in chinese",
			input: "你好",
			want:  "ni-hao",
		},
		{
			name:  "mixed chinese and ascii",
			input: "Go 语言入门",
			want:  "go-yu-yan-ru-men",
		},
		{
			name:  "ascii passes straight through",
			input: "Plain English Title",
			want:  "plain-english-title",
		},
		{
			name:  "chinese with punctuation",
			input: "你好，世界！",
			want:  "ni-hao-shi-jie",
		},
		{
			name:  "no transliterable characters",
			input: "！？。",
			want:  "",
		},
		{
			name:  "empty title",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTitle(tt.input)
			if got != tt.want {
				t.Errorf("FromTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestFromTitle_Deterministic verifies the transliteration collaborator
// contract: identical input always yields an identical slug.
func TestFromTitle_Deterministic(t *testing.T) {
	const title = "分布式系统设计"
	first := FromTitle(title)
	for i := 0; i < 5; i++ {
		if got := FromTitle(title); got != first {
			t.Fatalf("FromTitle(%q) not deterministic: %q vs %q", title, got, first)
		}
	}
	if first == "" {
		t.Fatalf("FromTitle(%q) = empty, want non-empty slug", title)
	}

	// Result must be lowercase ASCII and hyphens only.
	for _, r := range first {
		if !(r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			t.Fatalf("FromTitle(%q) = %q contains non-slug rune %q", title, first, r)
		}
	}
}

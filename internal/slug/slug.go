// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary
// strings, including pinyin transliteration for Chinese titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// nonAlphanumeric matches runs of anything that isn't a lowercase
// letter or digit. Each run collapses to a single hyphen.
var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly slug from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026"
//
// Characters outside a-z0-9 (including CJK) are treated as separators;
// use FromTitle for Chinese input that should be transliterated instead.
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = nonAlphanumeric.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// pinyinArgs is the shared transliteration configuration. Plain style:
// no tone marks, so "测试" reads as "ce shi".
var pinyinArgs = pinyin.NewArgs()

// Transliterate converts Han characters in the input to their pinyin
// reading, leaving every other rune untouched. Readings are surrounded
// by spaces so adjacent characters slug into separate words. The result
// is deterministic for a given input.
func Transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			if readings := pinyin.SinglePinyin(r, pinyinArgs); len(readings) > 0 {
				b.WriteByte(' ')
				b.WriteString(readings[0])
				b.WriteByte(' ')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FromTitle derives a slug from a post title, transliterating Chinese
// characters to pinyin first. Example: "测试文章" → "ce-shi-wen-zhang".
// Returns "" when the title has no transliterable characters.
func FromTitle(title string) string {
	return Generate(Transliterate(title))
}

package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// RemoveAccents removes accents from a string, converting accented characters to their base forms
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SplitWords splits an identifier-ish string into words. Separators are any
// run of non-alphanumeric characters, and camelCase / PascalCase boundaries
// start a new word. Acronyms stay together: "XMLHttpRequest" -> XML, Http, Request.
func SplitWords(s string) []string {
	s = strings.TrimSpace(RemoveAccents(s))
	if s == "" {
		return nil
	}

	var words []string
	for _, part := range nonAlnum.Split(s, -1) {
		if part == "" {
			continue
		}
		words = append(words, SplitCamelCase(part)...)
	}
	return words
}

// SplitCamelCase splits a camelCase or PascalCase string into words
func SplitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	var current strings.Builder

	rs := []rune(s)
	for i, r := range rs {
		newWord := false
		if i > 0 && isUppercase(r) {
			if !isUppercase(rs[i-1]) {
				newWord = true
			} else if i < len(rs)-1 && isLowercase(rs[i+1]) {
				// "XMLHttp": the H starts "Http"
				newWord = true
			}
		}

		if newWord && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isUppercase(r rune) bool { return r >= 'A' && r <= 'Z' }

func isLowercase(r rune) bool { return r >= 'a' && r <= 'z' }

func capitalize(w string) string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

// ToPascalCase converts a string to PascalCase
func ToPascalCase(s string) string {
	var b strings.Builder
	for _, w := range SplitWords(s) {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// ToCamelCase converts a string to camelCase
func ToCamelCase(s string) string {
	p := ToPascalCase(s)
	if p == "" {
		return ""
	}
	return strings.ToLower(p[:1]) + p[1:]
}

// ToSnakeCase converts a string to snake_case
func ToSnakeCase(s string) string {
	return joinLower(SplitWords(s), "_")
}

func joinLower(words []string, sep string) string {
	if len(words) == 0 {
		return ""
	}
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return strings.Join(out, sep)
}

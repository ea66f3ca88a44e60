package document

import "strings"

// Root is the JSON pointer of the document root.
const Root = "#"

var (
	escaper   = strings.NewReplacer("~", "~0", "/", "~1")
	unescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// EscapeToken escapes a single reference token (RFC 6901).
func EscapeToken(s string) string { return escaper.Replace(s) }

// UnescapeToken reverses EscapeToken.
func UnescapeToken(s string) string { return unescaper.Replace(s) }

// Join appends reference tokens to a pointer, escaping each token.
func Join(base string, tokens ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(EscapeToken(t))
	}
	return b.String()
}

// Split returns the unescaped reference tokens of a local pointer. The leading
// "#" is optional. ok is false for pointers into other documents.
func Split(pointer string) (tokens []string, ok bool) {
	switch {
	case pointer == "" || pointer == Root:
		return nil, true
	case strings.HasPrefix(pointer, "#/"):
		pointer = pointer[2:]
	case strings.HasPrefix(pointer, "/"):
		pointer = pointer[1:]
	default:
		return nil, false
	}
	raw := strings.Split(pointer, "/")
	tokens = make([]string, len(raw))
	for i, t := range raw {
		tokens[i] = UnescapeToken(t)
	}
	return tokens, true
}

// Normalize returns the canonical "#/..." form of a local pointer.
func Normalize(pointer string) (string, bool) {
	tokens, ok := Split(pointer)
	if !ok {
		return "", false
	}
	return Join(Root, tokens...), true
}

// HasPrefix reports whether pointer equals prefix or lies below it.
func HasPrefix(pointer, prefix string) bool {
	return pointer == prefix || strings.HasPrefix(pointer, prefix+"/")
}

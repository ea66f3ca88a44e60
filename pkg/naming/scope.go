package naming

import (
	"strconv"

	"github.com/vgerber/opage/pkg/generrors"
)

// MaxSuffix bounds the numeric disambiguation.
const MaxSuffix = 1000

// Scope hands out identifiers that are unique within it.
type Scope struct {
	name  string
	lang  Language
	role  Role
	taken map[string]string
}

// NewScope creates an empty scope for one role.
func NewScope(name string, lang Language, role Role) *Scope {
	return &Scope{name: name, lang: lang, role: role, taken: map[string]string{}}
}

// Owner returns who holds ident.
func (s *Scope) Owner(ident string) (string, bool) {
	o, ok := s.taken[ident]
	return o, ok
}

// Reserve marks ident as used without going through derivation.
func (s *Scope) Reserve(ident, owner string) {
	s.taken[ident] = owner
}

// Claim registers a mapped identifier verbatim. It fails when the identifier
// is illegal for the language; ok is false when someone else already holds it.
func (s *Scope) Claim(ident, owner string) (ok bool, err error) {
	if !s.lang.Legal(s.role, ident) {
		return false, &generrors.ConfigError{
			Field:   s.role.String() + " mapping",
			Value:   ident,
			Message: "not a legal " + s.lang.Name() + " identifier",
		}
	}
	if cur, held := s.taken[ident]; held && cur != owner {
		return false, nil
	}
	s.taken[ident] = owner
	return true, nil
}

// Derive picks an identifier for owner from segments, the naming path of the
// entity with the innermost segment last. Candidates are tried in order: the
// innermost segment alone, then qualified by more and more parent segments,
// then the shortest candidate with a numeric suffix. Reserved words count as
// collisions.
func (s *Scope) Derive(owner string, segments ...string) (string, error) {
	if len(segments) == 0 {
		segments = []string{""}
	}

	var first string
	for n := 1; n <= len(segments); n++ {
		joined := ""
		for _, seg := range segments[len(segments)-n:] {
			joined += " " + seg
		}
		cand := s.lang.Normalize(s.role, joined)
		if n == 1 {
			first = cand
		}
		if s.free(cand, owner) {
			s.taken[cand] = owner
			return cand, nil
		}
	}

	for i := 2; i <= MaxSuffix; i++ {
		cand := first + strconv.Itoa(i)
		if s.free(cand, owner) {
			s.taken[cand] = owner
			return cand, nil
		}
	}
	return "", &generrors.NameCollisionError{Scope: s.name, Identifier: first, Location: owner, Attempts: MaxSuffix}
}

func (s *Scope) free(cand, owner string) bool {
	if s.lang.Reserved(s.role, cand) {
		return false
	}
	cur, held := s.taken[cand]
	return !held || cur == owner
}

// Package generrors provides the structured error kinds returned while turning
// an OpenAPI document into a client model.
//
// Every kind carries the document location it refers to and matches a sentinel
// through errors.Is, so callers can branch without type assertions:
//
//	api, err := opage.Resolve(ctx, data, cfg)
//	if errors.Is(err, generrors.ErrUnsupportedFeature) {
//	    // the document uses a keyword the resolver does not model
//	}
//
// Use errors.As to get at the location:
//
//	var refErr *generrors.RefResolutionError
//	if errors.As(err, &refErr) {
//	    fmt.Println(refErr.Ref, refErr.Location)
//	}
package generrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	ErrParse              = errors.New("parse error")
	ErrRefResolution      = errors.New("reference resolution error")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrStructuralConflict = errors.New("structural conflict")
	ErrNameCollision      = errors.New("name collision")
	ErrOperationModel     = errors.New("operation model error")
	ErrConfig             = errors.New("configuration error")
)

// ParseError is a malformed or structurally invalid document.
type ParseError struct {
	// Source is the file path or URL the document came from
	Source string
	// Location is the JSON pointer of the offending node, if known
	Location string
	Line     int
	Column   int
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Location != "" {
		msg += " at " + e.Location
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d", e.Line)
		if e.Column > 0 {
			msg += fmt.Sprintf(", column %d", e.Column)
		}
		msg += ")"
	}
	return withDetail(msg, e.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// RefResolutionError is a $ref that does not point at any node of the working
// document. References into ignored components end up here as well.
type RefResolutionError struct {
	Ref string
	// Location is where the reference was found
	Location string
	Message  string
	Cause    error
}

func (e *RefResolutionError) Error() string {
	msg := fmt.Sprintf("unresolved reference %q", e.Ref)
	if e.Location != "" {
		msg += " at " + e.Location
	}
	return withDetail(msg, e.Message, e.Cause)
}

func (e *RefResolutionError) Unwrap() error { return e.Cause }

func (e *RefResolutionError) Is(target error) bool { return target == ErrRefResolution }

// UnsupportedFeatureError names a schema keyword that cannot be modeled.
type UnsupportedFeatureError struct {
	Feature  string
	Location string
	Message  string
}

func (e *UnsupportedFeatureError) Error() string {
	msg := fmt.Sprintf("unsupported feature %q", e.Feature)
	if e.Location != "" {
		msg += " at " + e.Location
	}
	return withDetail(msg, e.Message, nil)
}

func (e *UnsupportedFeatureError) Is(target error) bool { return target == ErrUnsupportedFeature }

// StructuralConflictError is an incompatible merge, for example two allOf
// members declaring the same property with different types.
type StructuralConflictError struct {
	Location string
	// Name is the conflicting property or identifier
	Name    string
	Message string
}

func (e *StructuralConflictError) Error() string {
	msg := "structural conflict"
	if e.Location != "" {
		msg += " at " + e.Location
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" on %q", e.Name)
	}
	return withDetail(msg, e.Message, nil)
}

func (e *StructuralConflictError) Is(target error) bool { return target == ErrStructuralConflict }

// NameCollisionError is returned when disambiguation gives up.
type NameCollisionError struct {
	Scope      string
	Identifier string
	Location   string
	Attempts   int
}

func (e *NameCollisionError) Error() string {
	msg := fmt.Sprintf("name collision: could not find a unique identifier for %q in scope %q", e.Identifier, e.Scope)
	if e.Location != "" {
		msg += " at " + e.Location
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg
}

func (e *NameCollisionError) Is(target error) bool { return target == ErrNameCollision }

// OperationModelError is a path or operation that cannot be turned into an
// Operation: malformed path templates, undeclared path parameters, status
// codes that are not numbers.
type OperationModelError struct {
	Method   string
	Path     string
	Location string
	Message  string
	Cause    error
}

func (e *OperationModelError) Error() string {
	msg := "operation error"
	if e.Method != "" || e.Path != "" {
		msg += fmt.Sprintf(" in %s %s", e.Method, e.Path)
	}
	if e.Location != "" {
		msg += " at " + e.Location
	}
	return withDetail(msg, e.Message, e.Cause)
}

func (e *OperationModelError) Unwrap() error { return e.Cause }

func (e *OperationModelError) Is(target error) bool { return target == ErrOperationModel }

// ConfigError is a structurally invalid configuration entry.
type ConfigError struct {
	// Field is the configuration key, e.g. "name_mapping.struct_mapping"
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " in " + e.Field
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	return withDetail(msg, e.Message, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func withDetail(msg, detail string, cause error) string {
	if detail != "" {
		msg += ": " + detail
	}
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return msg
}

package generator

import (
	"log/slog"
	"strings"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/generrors"
)

// ApplyIgnore returns a copy of doc without the ignored path items and
// components. doc itself is left untouched. Entries that match nothing are
// logged and otherwise skipped.
func ApplyIgnore(doc *document.Document, ignore config.IgnoreConfig, logger *slog.Logger) (*document.Document, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(ignore.Paths) == 0 && len(ignore.Components) == 0 {
		return doc, nil
	}

	var pointers []string
	for _, p := range ignore.Paths {
		pointers = append(pointers, document.Join("#/paths", p))
	}
	for _, c := range ignore.Components {
		ptr, err := componentPointer(c)
		if err != nil {
			return nil, err
		}
		pointers = append(pointers, ptr)
	}

	out, missing := doc.Without(pointers...)
	for _, m := range missing {
		logger.Warn("ignore entry matched nothing", "pointer", m)
	}
	logger.Debug("applied ignore list", "removed", len(pointers)-len(missing))
	return out, nil
}

// componentPointer accepts a bare schema name ("Pet") or a pointer into
// components ("#/components/responses/NotFound").
func componentPointer(entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if !strings.Contains(entry, "/") {
		return document.Join(componentSchemas, entry), nil
	}
	ptr, ok := document.Normalize(entry)
	if !ok || !document.HasPrefix(ptr, "#/components") {
		return "", &generrors.ConfigError{Field: "ignore.components", Value: entry, Message: "must be a schema name or a pointer into components"}
	}
	return ptr, nil
}

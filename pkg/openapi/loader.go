package openapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/generrors"
)

// maxSpecSize bounds documents fetched over HTTP.
const maxSpecSize = 64 << 20

func isURL(input string) (*url.URL, bool) {
	u, err := url.Parse(input)
	return u, err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// ReadSpec reads an OpenAPI document from a local file path or an HTTP(S) URL
func ReadSpec(ctx context.Context, input string) ([]byte, error) {
	if u, ok := isURL(input); ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", input, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s: unexpected status %s", input, resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxSpecSize))
	}
	// Fallback to reading from filesystem path
	return os.ReadFile(input)
}

// LoadDocument reads and parses the document at input.
func LoadDocument(ctx context.Context, input string) (*document.Document, error) {
	data, err := ReadSpec(ctx, input)
	if err != nil {
		return nil, &generrors.ParseError{Source: input, Message: "cannot read document", Cause: err}
	}
	return document.Parse(input, data)
}

// ValidateDocument runs the OpenAPI structural validation of kin-openapi
// over the document at input. It is a pre-flight check; generation does not
// depend on it.
func ValidateDocument(ctx context.Context, input string) error {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	var (
		doc *openapi3.T
		err error
	)
	if u, ok := isURL(input); ok {
		doc, err = loader.LoadFromURI(u)
	} else {
		doc, err = loader.LoadFromFile(input)
	}
	if err != nil {
		return &generrors.ParseError{Source: input, Message: "cannot load document", Cause: err}
	}
	if err := doc.Validate(loader.Context); err != nil {
		return &generrors.ParseError{Source: input, Message: "document is not valid OpenAPI", Cause: err}
	}
	return nil
}

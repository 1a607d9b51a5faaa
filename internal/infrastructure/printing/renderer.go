package printing

import (
	"context"
	"errors"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/domain/shared"
)

// DocumentRenderer turns an invoice into a complete PDF byte stream.
// Nothing is written anywhere until the whole document has been produced.
type DocumentRenderer interface {
	// Render builds the document for inv using the given locale, style,
	// labels and issuer profile
	Render(ctx context.Context, inv invoicing.Invoice, cfg invoicing.RenderConfig, profile invoicing.BusinessProfile) ([]byte, error)
	// Close releases any resources held by the renderer
	Close() error
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout   = "RENDER_TIMEOUT"
	ErrCodeRenderFailed    = "RENDER_FAILED"
	ErrCodeInvalidLayout   = "INVALID_LAYOUT"
	ErrCodeArtifactFailed  = "ARTIFACT_IO_FAILED"
	ErrCodeUnsupportedFont = "UNSUPPORTED_FONT"
	ErrCodeUnsupportedText = "UNSUPPORTED_TEXT"
)

// ErrRenderFailed matches every RenderError with errors.Is
var ErrRenderFailed = shared.NewDomainError(ErrCodeRenderFailed, "document rendering failed")

// RenderError represents an error during document rendering or while
// writing the rendered artifact
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Is matches ErrRenderFailed and any DomainError with the same code
func (e *RenderError) Is(target error) bool {
	var de *shared.DomainError
	if !errors.As(target, &de) {
		return false
	}
	return de.Code == ErrCodeRenderFailed || de.Code == e.Code
}

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

package patch

import (
	"fmt"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
)

// MaxBodySize is the maximum allowed body size in bytes.
const MaxBodySize = 163840 // 160KB

// Patch is a partial document update.
// Nil fields are unchanged. Metadata, when set, replaces the whole container.
type Patch struct {
	title    *string
	body     *string
	metadata *metadata.Map
}

// New validates and creates a Patch. At least one field must be provided.
func New(title, body *string, md *metadata.Map) (Patch, error) {
	if title == nil && body == nil && md == nil {
		return Patch{}, fmt.Errorf("%w: at least one field must be provided", domain.ErrInvalidDocument)
	}
	if body != nil && *body == "" {
		return Patch{}, fmt.Errorf("%w: content must not be empty", domain.ErrInvalidDocument)
	}
	if body != nil && len(*body) > MaxBodySize {
		return Patch{}, fmt.Errorf("%w: content too large (max %d bytes)", domain.ErrInvalidDocument, MaxBodySize)
	}
	return Patch{title: title, body: body, metadata: md}, nil
}

// Title returns the new title, or nil if unchanged.
func (p Patch) Title() *string { return p.title }

// Body returns the new body, or nil if unchanged.
func (p Patch) Body() *string { return p.body }

// Metadata returns the replacement metadata, or nil if unchanged.
func (p Patch) Metadata() *metadata.Map { return p.metadata }

// ChangesText reports whether the patch touches indexed text.
func (p Patch) ChangesText() bool { return p.title != nil || p.body != nil }

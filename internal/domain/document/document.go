package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
	"github.com/kailas-cloud/hybridex/internal/domain/document/patch"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Document size limits.
const (
	MaxIDLength    = 256
	MaxTitleLength = 1024
	MaxBodySize    = 163840 // 160KB
)

// Document is the document aggregate (immutable value object).
type Document struct {
	id        string
	title     string
	body      string
	metadata  metadata.Map
	createdAt time.Time
	updatedAt time.Time
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Body: non-empty, max 160KB. Title is optional.
func New(id, title, body string, md metadata.Map, now time.Time) (Document, error) {
	if err := ValidateID(id); err != nil {
		return Document{}, err
	}
	if err := validateText(title, body); err != nil {
		return Document{}, err
	}
	now = now.UTC()
	return Document{
		id:        id,
		title:     title,
		body:      body,
		metadata:  md.Clone(),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, title, body string, md metadata.Map, createdAt, updatedAt time.Time) Document {
	return Document{
		id: id, title: title, body: body, metadata: md,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ValidateID checks the identifier format.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: document ID is required", domain.ErrInvalidDocument)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: document ID too long (max %d)", domain.ErrInvalidDocument, MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: document ID must be alphanumeric with underscores and hyphens",
			domain.ErrInvalidDocument)
	}
	return nil
}

func validateText(title, body string) error {
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: title too long (max %d)", domain.ErrInvalidDocument, MaxTitleLength)
	}
	if body == "" {
		return fmt.Errorf("%w: content is required", domain.ErrInvalidDocument)
	}
	if len(body) > MaxBodySize {
		return fmt.Errorf("%w: content too large (max %d bytes)", domain.ErrInvalidDocument, MaxBodySize)
	}
	return nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Body returns the document body text.
func (d *Document) Body() string { return d.body }

// Metadata returns the ordered metadata.
func (d *Document) Metadata() metadata.Map { return d.metadata }

// CreatedAt returns the creation timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last update timestamp.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// Text returns the indexed text: title and body separated by a newline.
func (d *Document) Text() string {
	if d.title == "" {
		return d.body
	}
	return d.title + "\n" + d.body
}

// ContentHash returns the hex SHA-256 of Text. Embeddings are stale when it changes.
func (d *Document) ContentHash() string {
	return HashText(d.Text())
}

// HashText returns the hex SHA-256 of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Apply returns a copy with the patch applied and updatedAt set to now.
func (d *Document) Apply(p patch.Patch, now time.Time) (Document, error) {
	next := Document{
		id:        d.id,
		title:     d.title,
		body:      d.body,
		metadata:  d.metadata,
		createdAt: d.createdAt,
		updatedAt: now.UTC(),
	}
	if t := p.Title(); t != nil {
		next.title = *t
	}
	if b := p.Body(); b != nil {
		next.body = *b
	}
	if md := p.Metadata(); md != nil {
		next.metadata = md.Clone()
	}
	if err := validateText(next.title, next.body); err != nil {
		return Document{}, err
	}
	return next, nil
}

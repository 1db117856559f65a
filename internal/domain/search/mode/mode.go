package mode

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
)

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Hybrid fuses semantic and keyword scores.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}

// UsesSemantic reports whether the mode needs a query embedding.
func (m Mode) UsesSemantic() bool { return m == Hybrid || m == Semantic }

// UsesKeyword reports whether the mode queries the lexical index.
func (m Mode) UsesKeyword() bool { return m == Hybrid || m == Keyword }

// Parse converts user input to a Mode. Empty input means Hybrid.
func Parse(s string) (Mode, error) {
	if s == "" {
		return Hybrid, nil
	}
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q (expected hybrid, semantic or keyword)", domain.ErrInvalidMode, s)
	}
	return m, nil
}

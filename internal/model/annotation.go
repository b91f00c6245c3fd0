package model

import (
	"fmt"
	"time"
)

// PartMetadata is the mutable per-part sidecar state: what the user did with
// a part, as opposed to what the model said in it. Pointer fields distinguish
// "leave unchanged" (nil) from an explicit value, so a partial update can
// never accidentally erase an unrelated field.
type PartMetadata struct {
	IsInReport *bool    `json:"is_in_report,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

// Suggestion is a follow-up action derived once after an assistant turn
// completes: a tool to call next plus a short human-readable prompt.
type Suggestion struct {
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
}

// Annotation is the one optional sidecar attached to a message. The message
// content itself is immutable once persisted; everything mutable lives here.
// The part map only ever grows or updates existing keys.
type Annotation struct {
	CreatedAt   time.Time               `json:"created_at"`
	Parts       map[string]PartMetadata `json:"parts"`
	Suggestions []Suggestion            `json:"suggestions,omitempty"`
}

// PartKey formats the annotation map key for a part index.
func PartKey(partIdx int) string {
	return fmt.Sprintf("part_%d", partIdx)
}

// MessageAnnotation returns the message's sidecar, or nil when the message
// has none. Pure accessor, never panics on a nil receiver chain.
func MessageAnnotation(m *Message) *Annotation {
	if m == nil {
		return nil
	}
	return m.Annotation
}

// NewAnnotation builds the initial sidecar attached when an assistant message
// is finalized: an empty report-membership map plus whatever suggestions were
// derived for the turn.
func NewAnnotation(now time.Time, suggestions []Suggestion) *Annotation {
	return &Annotation{
		CreatedAt:   now.UTC(),
		Parts:       map[string]PartMetadata{},
		Suggestions: suggestions,
	}
}

// MergePartField returns a new annotation with only the targeted part's
// fields updated. Existing fields of that part are preserved unless the
// update explicitly sets them; nil fields in the update are skipped. All
// other parts and message-level fields are untouched. Last writer wins per
// field, not per envelope.
func MergePartField(ann *Annotation, partIdx int, updates PartMetadata) *Annotation {
	merged := Annotation{
		Parts: make(map[string]PartMetadata, 1),
	}
	if ann != nil {
		merged.CreatedAt = ann.CreatedAt
		merged.Suggestions = ann.Suggestions
		for k, v := range ann.Parts {
			merged.Parts[k] = v
		}
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = time.Now().UTC()
	}

	key := PartKey(partIdx)
	current := merged.Parts[key]
	if updates.IsInReport != nil {
		current.IsInReport = updates.IsInReport
	}
	if updates.Threshold != nil {
		current.Threshold = updates.Threshold
	}
	merged.Parts[key] = current
	return &merged
}

// WithSuggestions returns a copy of the annotation carrying the given
// suggestion list, leaving the part map untouched.
func WithSuggestions(ann *Annotation, suggestions []Suggestion) *Annotation {
	out := Annotation{Parts: map[string]PartMetadata{}}
	if ann != nil {
		out.CreatedAt = ann.CreatedAt
		for k, v := range ann.Parts {
			out.Parts[k] = v
		}
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	out.Suggestions = suggestions
	return &out
}

package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eva-chat/backend/internal/model"
)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestMergePartField_UpdatesOnlyTarget(t *testing.T) {
	created := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	ann := &model.Annotation{
		CreatedAt: created,
		Parts: map[string]model.PartMetadata{
			"part_0": {IsInReport: boolPtr(true), Threshold: floatPtr(0.5)},
			"part_2": {IsInReport: boolPtr(false)},
		},
		Suggestions: []model.Suggestion{{ToolName: "plot_expression", Content: "Plot TP53"}},
	}

	merged := model.MergePartField(ann, 2, model.PartMetadata{Threshold: floatPtr(0.8)})

	// Target part gains the new field and keeps the old one.
	require.Contains(t, merged.Parts, "part_2")
	assert.Equal(t, false, *merged.Parts["part_2"].IsInReport)
	assert.Equal(t, 0.8, *merged.Parts["part_2"].Threshold)

	// Every other field of the envelope is untouched.
	assert.Equal(t, created, merged.CreatedAt)
	assert.Equal(t, ann.Suggestions, merged.Suggestions)
	assert.Equal(t, true, *merged.Parts["part_0"].IsInReport)
	assert.Equal(t, 0.5, *merged.Parts["part_0"].Threshold)
}

func TestMergePartField_NilFieldsAreSkipped(t *testing.T) {
	ann := &model.Annotation{
		CreatedAt: time.Now().UTC(),
		Parts: map[string]model.PartMetadata{
			"part_1": {IsInReport: boolPtr(true), Threshold: floatPtr(0.3)},
		},
	}

	merged := model.MergePartField(ann, 1, model.PartMetadata{IsInReport: boolPtr(false)})

	assert.Equal(t, false, *merged.Parts["part_1"].IsInReport)
	assert.Equal(t, 0.3, *merged.Parts["part_1"].Threshold, "unset field must survive the update")
}

func TestMergePartField_DoesNotMutateInput(t *testing.T) {
	ann := &model.Annotation{
		CreatedAt: time.Now().UTC(),
		Parts:     map[string]model.PartMetadata{"part_0": {IsInReport: boolPtr(false)}},
	}

	_ = model.MergePartField(ann, 0, model.PartMetadata{IsInReport: boolPtr(true)})

	assert.Equal(t, false, *ann.Parts["part_0"].IsInReport)
}

func TestMergePartField_CreatesMissingPartEntry(t *testing.T) {
	ann := model.NewAnnotation(time.Now(), nil)

	merged := model.MergePartField(ann, 4, model.PartMetadata{IsInReport: boolPtr(true)})

	require.Contains(t, merged.Parts, "part_4")
	assert.Equal(t, true, *merged.Parts["part_4"].IsInReport)
	assert.Nil(t, merged.Parts["part_4"].Threshold)
}

func TestMergePartField_NilAnnotation(t *testing.T) {
	merged := model.MergePartField(nil, 0, model.PartMetadata{Threshold: floatPtr(0.9)})

	require.NotNil(t, merged)
	assert.False(t, merged.CreatedAt.IsZero())
	assert.Equal(t, 0.9, *merged.Parts["part_0"].Threshold)
}

func TestPartKey(t *testing.T) {
	assert.Equal(t, "part_0", model.PartKey(0))
	assert.Equal(t, "part_12", model.PartKey(12))
}

func TestNewAnnotation(t *testing.T) {
	now := time.Now()
	suggestions := []model.Suggestion{{ToolName: "search_samples", Content: "Find related samples"}}

	ann := model.NewAnnotation(now, suggestions)

	require.NotNil(t, ann.Parts)
	assert.Empty(t, ann.Parts)
	assert.Equal(t, suggestions, ann.Suggestions)
	assert.Equal(t, now.UTC(), ann.CreatedAt)
}

func TestWithSuggestions_PreservesParts(t *testing.T) {
	ann := &model.Annotation{
		CreatedAt: time.Now().UTC(),
		Parts:     map[string]model.PartMetadata{"part_0": {IsInReport: boolPtr(true)}},
	}

	out := model.WithSuggestions(ann, []model.Suggestion{{ToolName: "plot_expression", Content: "Plot it"}})

	assert.Len(t, out.Suggestions, 1)
	assert.Equal(t, true, *out.Parts["part_0"].IsInReport)
	assert.Nil(t, ann.Suggestions, "input must stay untouched")
}

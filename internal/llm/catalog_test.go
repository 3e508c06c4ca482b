package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() *Catalog {
	return NewCatalog([]ModelCandidate{
		{ID: "small", Priority: 2},
		{ID: "large", Priority: 1},
		{ID: "voice", Priority: 3, VoiceOptimized: true},
	})
}

func TestPlanOrdering(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		expected  []string
	}{
		{
			name:      "no requested model sorts by priority",
			requested: "",
			expected:  []string{"large", "small", "voice"},
		},
		{
			name:      "requested model goes first",
			requested: "small",
			expected:  []string{"small", "large", "voice"},
		},
		{
			name:      "requested model outside catalog still tried first",
			requested: "experimental",
			expected:  []string{"experimental", "large", "small", "voice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, testCatalog().Plan(tt.requested))
		})
	}
}

func TestPlanNoDuplicates(t *testing.T) {
	plan := testCatalog().Plan("large")
	assert.Equal(t, []string{"large", "small", "voice"}, plan)
}

func TestPlanTieBreaksByDeclarationOrder(t *testing.T) {
	catalog := NewCatalog([]ModelCandidate{
		{ID: "b", Priority: 1},
		{ID: "a", Priority: 1},
		{ID: "c", Priority: 1},
	})
	assert.Equal(t, []string{"b", "a", "c"}, catalog.Plan(""))
}

func TestPlanVoicePrefersVoiceOptimized(t *testing.T) {
	assert.Equal(t, []string{"voice", "large", "small"}, testCatalog().PlanVoice(""))
}

func TestCatalogIgnoresDuplicateDeclarations(t *testing.T) {
	catalog := NewCatalog([]ModelCandidate{
		{ID: "m", Priority: 1},
		{ID: "m", Priority: 9},
	})
	assert.Equal(t, 1, catalog.Len())
	assert.Equal(t, []string{"m"}, catalog.Plan(""))
}

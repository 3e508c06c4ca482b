package llm

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ModelCandidate is one entry of the fallback catalog. Lower priority number
// means tried earlier.
type ModelCandidate struct {
	ID             string
	Priority       int
	VoiceOptimized bool
}

// Catalog is the static, process-wide set of fallback candidates. It is
// loaded once at startup and read-only afterwards, so plans can be computed
// per request without locking.
type Catalog struct {
	candidates *orderedmap.OrderedMap[string, ModelCandidate]
}

func NewCatalog(candidates []ModelCandidate) *Catalog {
	m := orderedmap.New[string, ModelCandidate]()
	for _, c := range candidates {
		if _, exists := m.Get(c.ID); exists {
			continue
		}
		m.Set(c.ID, c)
	}
	return &Catalog{candidates: m}
}

func (c *Catalog) Len() int {
	return c.candidates.Len()
}

// Plan orders the candidate model ids for one request: the requested model
// first when non-empty (even if the catalog does not know it; the upstream
// gateway is the source of truth for validity), then catalog entries by
// ascending priority. Ties keep catalog declaration order. No duplicates.
func (c *Catalog) Plan(requested string) []string {
	return c.plan(requested, false)
}

// PlanVoice is Plan with voice-optimized candidates sorted ahead of the
// rest, for replies bound for speech synthesis.
func (c *Catalog) PlanVoice(requested string) []string {
	return c.plan(requested, true)
}

func (c *Catalog) plan(requested string, voiceFirst bool) []string {
	ordered := make([]ModelCandidate, 0, c.candidates.Len())
	for pair := c.candidates.Oldest(); pair != nil; pair = pair.Next() {
		ordered = append(ordered, pair.Value)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if voiceFirst && ordered[i].VoiceOptimized != ordered[j].VoiceOptimized {
			return ordered[i].VoiceOptimized
		}
		return ordered[i].Priority < ordered[j].Priority
	})

	plan := make([]string, 0, len(ordered)+1)
	seen := make(map[string]bool, len(ordered)+1)
	if requested != "" {
		plan = append(plan, requested)
		seen[requested] = true
	}
	for _, candidate := range ordered {
		if seen[candidate.ID] {
			continue
		}
		seen[candidate.ID] = true
		plan = append(plan, candidate.ID)
	}
	return plan
}

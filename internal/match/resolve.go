package match

import "github.com/HerbHall/skillpath/pkg/catalog"

// DefaultThreshold is the minimum similarity for a direct launch. Search has
// no threshold: a weak top result is still worth showing, but not opening.
const DefaultThreshold = 0.75

// ReasonNotFound is the rejection reason when no title clears the threshold.
const ReasonNotFound = "not found"

// Decision is the outcome of resolving a launch request.
type Decision struct {
	Accepted bool
	Entry    catalog.Entry
	Score    float64
	Reason   string
}

// Accepted builds an accepting decision.
func Accepted(e catalog.Entry, score float64) Decision {
	return Decision{Accepted: true, Entry: e, Score: score}
}

// Rejected builds a rejecting decision.
func Rejected(reason string, best float64) Decision {
	return Decision{Reason: reason, Score: best}
}

// Resolver picks the single best catalog entry for a launch request.
type Resolver struct {
	Threshold float64 `mapstructure:"threshold"`
}

// DefaultResolver returns a Resolver using DefaultThreshold.
func DefaultResolver() Resolver {
	return Resolver{Threshold: DefaultThreshold}
}

// Resolve scans entries linearly for the highest Similarity(title, query).
// The first entry wins ties. A best score below the threshold, or an empty
// catalog, rejects with ReasonNotFound.
func (r Resolver) Resolve(query string, entries []catalog.Entry) Decision {
	best := -1
	bestScore := 0.0
	for i := range entries {
		score := Similarity(entries[i].Title, query)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 || bestScore < r.Threshold {
		return Rejected(ReasonNotFound, bestScore)
	}
	return Accepted(entries[best], bestScore)
}

package match

import "github.com/HerbHall/skillpath/pkg/catalog"

// Selector defaults.
const (
	DefaultMaxTotal      = 10
	DefaultMaxOfCategory = 2
)

// Selected is one admitted search result. Similarity is kept for display.
type Selected struct {
	catalog.Entry
	Similarity float64 `json:"similarity"`
}

// Selection is the bounded, quota-respecting result of one search.
type Selection []Selected

// Entries returns the selected entries without scores.
func (s Selection) Entries() []catalog.Entry {
	out := make([]catalog.Entry, len(s))
	for i := range s {
		out[i] = s[i].Entry
	}
	return out
}

// Selector picks at most MaxTotal entries from a ranking while capping how
// many entries of Category may appear. Slots are held back for other content
// even when Category entries rank higher.
type Selector struct {
	MaxTotal      int    `mapstructure:"max_total"`
	Category      string `mapstructure:"category"`
	MaxOfCategory int    `mapstructure:"max_of_category"`
}

// DefaultSelector returns the selector used for content search: ten results,
// at most two labs.
func DefaultSelector() Selector {
	return Selector{
		MaxTotal:      DefaultMaxTotal,
		Category:      catalog.TypeLab,
		MaxOfCategory: DefaultMaxOfCategory,
	}
}

// Select walks the ranking greedily in rank order. Entries outside Category
// are always admitted. A Category entry is admitted only while the remaining
// slots exceed the remaining category allowance and the cap is not reached.
// Select is a pure function of its input.
func (s Selector) Select(ranking Ranking[catalog.Entry]) Selection {
	if s.MaxTotal <= 0 {
		return Selection{}
	}

	out := make(Selection, 0, min(s.MaxTotal, len(ranking)))
	total, inCategory := 0, 0

	for i := range ranking {
		if total >= s.MaxTotal {
			break
		}
		cand := ranking[i]

		if cand.Item.ContentType != s.Category {
			out = append(out, Selected{Entry: cand.Item, Similarity: cand.Score})
			total++
			continue
		}

		if inCategory < s.MaxOfCategory && (s.MaxTotal-total) > (s.MaxOfCategory-inCategory) {
			out = append(out, Selected{Entry: cand.Item, Similarity: cand.Score})
			total++
			inCategory++
		}
	}

	return out
}

package match

import (
	"github.com/sahilm/fuzzy"

	"github.com/HerbHall/skillpath/pkg/catalog"
)

// titleSource implements fuzzy.Source over catalog titles.
type titleSource []catalog.Entry

func (s titleSource) String(i int) string { return s[i].Title }
func (s titleSource) Len() int            { return len(s) }

// Suggest returns up to limit distinct titles that fuzzily contain query, best
// match first. It is used to hint at alternatives after a rejected launch and
// never influences the launch decision itself.
func Suggest(query string, entries []catalog.Entry, limit int) []string {
	if limit <= 0 || len(entries) == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, titleSource(entries))
	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	for _, m := range matches {
		if _, dup := seen[m.Str]; dup {
			continue
		}
		seen[m.Str] = struct{}{}
		out = append(out, m.Str)
		if len(out) == limit {
			break
		}
	}
	return out
}

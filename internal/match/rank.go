package match

import "sort"

// Scored pairs a candidate with its similarity to one query. Index is the
// candidate's position in the input sequence.
type Scored[T any] struct {
	Item  T
	Score float64
	Index int
}

// Ranking is a scored candidate list ordered by score descending. Candidates
// with equal scores keep their input order.
type Ranking[T any] []Scored[T]

// Rank scores every candidate against query using keyOf to pick the text to
// compare. The result has the same length as candidates; nothing is filtered.
func Rank[T any](query string, candidates []T, keyOf func(T) string) Ranking[T] {
	ranking := make(Ranking[T], len(candidates))
	for i, c := range candidates {
		ranking[i] = Scored[T]{
			Item:  c,
			Score: Similarity(query, keyOf(c)),
			Index: i,
		}
	}

	sort.SliceStable(ranking, func(a, b int) bool {
		return ranking[a].Score > ranking[b].Score
	})

	return ranking
}

// Items returns the ranked candidates without scores.
func (r Ranking[T]) Items() []T {
	items := make([]T, len(r))
	for i := range r {
		items[i] = r[i].Item
	}
	return items
}

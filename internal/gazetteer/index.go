package gazetteer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinQueryLength is the shortest query, in characters, that is matched.
const MinQueryLength = 3

// Default thresholds. A threshold is a dissimilarity in [0,1]: 0 only accepts
// exact matches and 1 accepts anything.
const (
	DefaultThreshold         = 0.4
	DefaultFallbackThreshold = 0.6
)

// Options tunes an Index.
type Options struct {
	Threshold         float64
	FallbackThreshold float64
}

type field struct {
	folded string
	tokens []string
}

type indexed struct {
	loc    domain.Location
	fields []field
}

// Index is an immutable in-memory fuzzy index. It is safe for concurrent use.
type Index struct {
	entries []indexed
	byID    map[string]int
	strict  float64
	loose   float64
}

// Match is a search hit with its similarity score in [0,1].
type Match struct {
	Location domain.Location
	Score    float64
}

// NewIndex builds an index over entries.
func NewIndex(entries []Entry, opts Options) *Index {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.FallbackThreshold < opts.Threshold || opts.FallbackThreshold > 1 {
		opts.FallbackThreshold = max(DefaultFallbackThreshold, opts.Threshold)
	}
	ix := &Index{
		entries: make([]indexed, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
		strict:  1 - opts.Threshold,
		loose:   1 - opts.FallbackThreshold,
	}
	for _, e := range entries {
		texts := append([]string{e.Name, e.Address}, e.Aliases...)
		fields := make([]field, 0, len(texts))
		for _, t := range texts {
			f := Fold(t)
			if f == "" {
				continue
			}
			fields = append(fields, field{folded: f, tokens: strings.Fields(f)})
		}
		ix.byID[e.ID] = len(ix.entries)
		ix.entries = append(ix.entries, indexed{loc: e.Location(), fields: fields})
	}
	return ix
}

// Len returns the number of indexed locations.
func (ix *Index) Len() int { return len(ix.entries) }

// Get returns the location with the given id.
func (ix *Index) Get(id string) (domain.Location, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return domain.Location{}, false
	}
	return ix.entries[i].loc, true
}

// All returns every indexed location in file order.
func (ix *Index) All() []domain.Location {
	out := make([]domain.Location, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.loc
	}
	return out
}

// Search returns locations matching query, best first. Queries shorter than
// MinQueryLength return nothing. Any location whose name contains the query
// (ignoring case) is always included.
func (ix *Index) Search(query string) []domain.Location {
	return locations(ix.match(query, ix.strict))
}

// SearchLoose is Search with the fallback threshold.
func (ix *Index) SearchLoose(query string) []domain.Location {
	return locations(ix.match(query, ix.loose))
}

// Matches is Search returning scores.
func (ix *Index) Matches(query string) []Match {
	return ix.match(query, ix.strict)
}

func (ix *Index) match(query string, minScore float64) []Match {
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []Match{}
	}
	q := Fold(query)
	if q == "" {
		return []Match{}
	}
	n := len(strings.Fields(q))

	out := []Match{}
	for _, e := range ix.entries {
		best := 0.0
		for _, f := range e.fields {
			best = max(best, score(q, n, f))
			if best == 1 {
				break
			}
		}
		if best >= minScore {
			out = append(out, Match{Location: e.loc, Score: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Location.Name < out[j].Location.Name
	})
	return out
}

// score compares the query with the whole field and with every window of the
// field holding as many tokens as the query.
func score(q string, n int, f field) float64 {
	if strings.Contains(f.folded, q) {
		return 1
	}
	best := similarity(q, f.folded)
	for i := 0; i+n <= len(f.tokens); i++ {
		best = max(best, similarity(q, strings.Join(f.tokens[i:i+n], " ")))
	}
	return best
}

func similarity(a, b string) float64 {
	s, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(s)
}

func locations(ms []Match) []domain.Location {
	out := make([]domain.Location, len(ms))
	for i, m := range ms {
		out[i] = m.Location
	}
	return out
}

// Fold lowercases s, strips diacritics and collapses punctuation and
// whitespace runs into single spaces.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	space := true
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

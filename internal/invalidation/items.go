package invalidation

// Candidate is an un-normalized purge target produced by a resolver.
type Candidate struct {
	URL  string
	Kind Kind
}

// CreateItems normalizes candidates, discards anything that fails
// normalization and dedupes by key keeping first-seen order. It is the single
// choke point every resolver path goes through.
func CreateItems(candidates []Candidate) []Item {
	out := make([]Item, 0, len(candidates))
	seen := make(map[Key]struct{}, len(candidates))
	for _, c := range candidates {
		it, ok := Normalize(c.Kind, c.URL)
		if !ok {
			continue
		}
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

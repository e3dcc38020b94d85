package ranking

import "strings"

// Query is a normalized search query.
type Query struct {
	Raw   string
	Terms []string
}

// ParseQuery lowercases the query, treats hyphens as spaces, and splits it
// into whitespace-separated terms in their original order.
func ParseQuery(raw string) Query {
	normalized := strings.ReplaceAll(strings.ToLower(raw), "-", " ")
	return Query{
		Raw:   raw,
		Terms: strings.Fields(normalized),
	}
}

// IsEmpty reports whether the raw query string is empty. Empty queries list
// the whole corpus by popularity and skip the negative score filter. A
// blank query such as "   " is not empty: it has no terms but is filtered.
func (q Query) IsEmpty() bool {
	return q.Raw == ""
}

package searcher

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// queryTokens extracts lowercase alphanumeric tokens from a query string.
func queryTokens(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// exactExpr builds the exact-phrase FTS5 expression. Quoting the whole
// query both phrase-matches it and neutralizes FTS5 operators.
func exactExpr(query string) string {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return ""
	}
	return `"` + strings.Join(tokens, " ") + `"`
}

// wildcardExpr builds the prefix-match tier: every token must match as a
// prefix.
func wildcardExpr(query string) string {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return ""
	}
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = `"` + tok + `"*`
	}
	return strings.Join(parts, " AND ")
}

// fuzzyExpr expands query tokens against the index vocabulary, accepting
// terms within the edit-distance tolerance, and ORs the survivors.
func (s *Searcher) fuzzyExpr(ctx context.Context, query string) (string, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return "", nil
	}

	rows, err := s.reader.DB().QueryContext(ctx, "SELECT term FROM messages_vocab")
	if err != nil {
		return "", fmt.Errorf("vocabulary query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return "", err
		}
		for _, tok := range tokens {
			if withinDistance(tok, term, maxFuzzyDistance) {
				terms = append(terms, `"`+term+`"`)
				break
			}
		}
		if len(terms) >= maxFuzzyTerms {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(terms) == 0 {
		return "", nil
	}
	return strings.Join(terms, " OR "), nil
}

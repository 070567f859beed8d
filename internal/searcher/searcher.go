package searcher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/internal/index"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

const (
	defaultLimit = 20
	maxLimit     = 500

	// snippetTokens bounds the excerpt FTS5 builds around the match.
	snippetTokens = 16

	// maxFuzzyTerms caps vocabulary expansion so a short query cannot
	// explode into an unbounded OR.
	maxFuzzyTerms = 50

	// maxFuzzyDistance is the edit-distance tolerance of the fuzzy tier.
	maxFuzzyDistance = 2
)

// SearchFilters narrows results; filters are conjoined with the text match.
type SearchFilters struct {
	// Agents is an allow-list of agent slugs. Empty means all agents.
	Agents []string
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Filters  SearchFilters
	Limit    int
	Offset   int
	Semantic bool // blend hash-embedding similarity into ranking
	UseCache bool
}

// ProvenanceResolver classifies where a source path came from. Nil means
// everything is local.
type ProvenanceResolver func(sourcePath string) types.Provenance

// Searcher answers ranked queries against a committed index snapshot.
type Searcher struct {
	reader     *index.Reader
	embedder   embedder.Embedder
	provenance ProvenanceResolver
	cache      *lru.Cache[[32]byte, []types.Hit]
	cacheMu    sync.Mutex
}

// NewSearcher creates a Searcher over an index reader. The embedder enables
// the semantic blend and may be nil; the resolver may be nil.
func NewSearcher(reader *index.Reader, emb embedder.Embedder, resolver ProvenanceResolver) *Searcher {
	cache, err := lru.New[[32]byte, []types.Hit](1000)
	if err != nil {
		// Unreachable with a valid size.
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{
		reader:     reader,
		embedder:   emb,
		provenance: resolver,
		cache:      cache,
	}
}

// Search executes one query. An empty query string is valid and returns the
// most recent messages; tiers run exact, then wildcard, then fuzzy, and the
// per-hit match type names the tier that actually produced the hit.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) ([]types.Hit, error) {
	normalizeRequest(&req)

	var key [32]byte
	if req.UseCache {
		key = cacheKey(req)
		s.cacheMu.Lock()
		cached, ok := s.cache.Get(key)
		s.cacheMu.Unlock()
		if ok {
			return cached, nil
		}
	}

	var hits []types.Hit
	var err error
	if strings.TrimSpace(req.Query) == "" {
		hits, err = s.recent(ctx, req)
	} else {
		hits, err = s.tiered(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	// Offset/limit apply only after the full candidate set is ranked.
	hits = window(hits, req.Offset, req.Limit)
	s.resolveProvenance(hits)

	if req.UseCache {
		s.cacheMu.Lock()
		s.cache.Add(key, hits)
		s.cacheMu.Unlock()
	}
	return hits, nil
}

// InvalidateCache drops all cached results. Called after an index commit.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func normalizeRequest(req *SearchRequest) {
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
}

func cacheKey(req SearchRequest) [32]byte {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteByte(0)
	for _, a := range req.Filters.Agents {
		b.WriteString(a)
		b.WriteByte(0)
	}
	fmt.Fprintf(&b, "%d:%d:%t", req.Limit, req.Offset, req.Semantic)
	return sha256.Sum256([]byte(b.String()))
}

func window(hits []types.Hit, offset, limit int) []types.Hit {
	if offset >= len(hits) {
		return nil
	}
	hits = hits[offset:]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// recent returns the newest messages, used for the empty-query request.
func (s *Searcher) recent(ctx context.Context, req SearchRequest) ([]types.Hit, error) {
	query := `
		SELECT id, agent, workspace, source_path, msg_idx, created_at, title, content
		FROM messages
	`
	var args []any
	if clause, filterArgs := agentClause(req.Filters); clause != "" {
		query += " WHERE " + clause
		args = filterArgs
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, req.Offset+req.Limit)

	rows, err := s.reader.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recency query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []types.Hit
	for rows.Next() {
		hit, _, err := scanHit(rows, false)
		if err != nil {
			return nil, err
		}
		hit.Match = types.MatchExact
		hit.Snippet = excerpt(hit.Content)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// tiered runs the match tiers in order of preference and stops at the first
// one that produces results.
func (s *Searcher) tiered(ctx context.Context, req SearchRequest) ([]types.Hit, error) {
	tiers := []struct {
		match types.MatchType
		expr  func() (string, error)
	}{
		{types.MatchExact, func() (string, error) { return exactExpr(req.Query), nil }},
		{types.MatchWildcard, func() (string, error) { return wildcardExpr(req.Query), nil }},
		{types.MatchFuzzy, func() (string, error) { return s.fuzzyExpr(ctx, req.Query) }},
	}

	for _, tier := range tiers {
		expr, err := tier.expr()
		if err != nil {
			return nil, err
		}
		if expr == "" {
			continue
		}
		hits, err := s.ftsQuery(ctx, expr, req)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			continue
		}
		for i := range hits {
			hits[i].Match = tier.match
		}
		if req.Semantic && s.embedder != nil {
			hits, err = s.blendSemantic(ctx, req, hits)
			if err != nil {
				return nil, err
			}
		}
		return hits, nil
	}
	// No tier matched: zero hits, not an error.
	return nil, nil
}

// ftsQuery runs one FTS5 match expression, ranked by BM25.
func (s *Searcher) ftsQuery(ctx context.Context, expr string, req SearchRequest) ([]types.Hit, error) {
	query := fmt.Sprintf(`
		SELECT m.id, m.agent, m.workspace, m.source_path, m.msg_idx, m.created_at, m.title, m.content,
		       snippet(messages_fts, 0, '', '', '…', %d), bm25(messages_fts)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		WHERE messages_fts MATCH ?
	`, snippetTokens)
	args := []any{expr}
	if clause, filterArgs := agentClause(req.Filters); clause != "" {
		query += " AND " + clause
		args = append(args, filterArgs...)
	}
	query += " ORDER BY bm25(messages_fts) LIMIT ?"
	args = append(args, req.Offset+req.Limit)

	rows, err := s.reader.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []types.Hit
	for rows.Next() {
		hit, _, err := scanHit(rows, true)
		if err != nil {
			return nil, err
		}
		hit.LineNo = lineOf(hit.Content, firstToken(req.Query))
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// agentClause builds the allow-list conjunction.
func agentClause(filters SearchFilters) (string, []any) {
	if len(filters.Agents) == 0 {
		return "", nil
	}
	placeholders := strings.Repeat("?,", len(filters.Agents))
	clause := fmt.Sprintf("m.agent IN (%s)", placeholders[:len(placeholders)-1])
	args := make([]any, len(filters.Agents))
	for i, a := range filters.Agents {
		args[i] = a
	}
	return clause, args
}

// scanHit reads one result row. withScore rows carry the snippet and BM25
// columns appended by the FTS query.
func scanHit(rows *sql.Rows, withScore bool) (types.Hit, int64, error) {
	var (
		hit       types.Hit
		id        int64
		workspace sql.NullString
		createdAt sql.NullInt64
		title     sql.NullString
	)
	if withScore {
		var bm25 float64
		if err := rows.Scan(&id, &hit.Agent, &workspace, &hit.SourcePath, &hit.MsgIdx,
			&createdAt, &title, &hit.Content, &hit.Snippet, &bm25); err != nil {
			return hit, 0, err
		}
		// SQLite's bm25() returns lower-is-better; negate so callers always
		// see higher-is-better.
		hit.Score = -bm25
	} else {
		if err := rows.Scan(&id, &hit.Agent, &workspace, &hit.SourcePath, &hit.MsgIdx,
			&createdAt, &title, &hit.Content); err != nil {
			return hit, 0, err
		}
	}
	hit.Workspace = workspace.String
	hit.CreatedAt = createdAt.Int64
	hit.Title = title.String
	return hit, id, nil
}

// resolveProvenance stamps each hit with its origin.
func (s *Searcher) resolveProvenance(hits []types.Hit) {
	for i := range hits {
		if s.provenance != nil {
			hits[i].Provenance = s.provenance(hits[i].SourcePath)
			continue
		}
		hits[i].Provenance = types.Provenance{Source: "local", Kind: types.SourceLocal}
	}
}

// excerpt bounds content for the empty-query listing.
func excerpt(content string) string {
	const maxRunes = 160
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "…"
}

// lineOf returns the 1-based line containing the first occurrence of token,
// or 0 when not found.
func lineOf(content, token string) int {
	if token == "" {
		return 0
	}
	idx := strings.Index(strings.ToLower(content), token)
	if idx < 0 {
		return 0
	}
	return 1 + strings.Count(content[:idx], "\n")
}

func firstToken(query string) string {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// blendSemantic fuses the text ranking with cosine similarity over stored
// vectors using Reciprocal Rank Fusion. Match classification is unchanged;
// only the ordering and scores move.
func (s *Searcher) blendSemantic(ctx context.Context, req SearchRequest, textHits []types.Hit) ([]types.Hit, error) {
	queryVec, err := s.embedder.Embed(req.Query)
	if err != nil {
		// An unembeddable query falls back to pure text ranking.
		return textHits, nil
	}

	simRank, err := s.similarityRanking(ctx, req, queryVec, req.Offset+req.Limit)
	if err != nil {
		return nil, err
	}
	if len(simRank) == 0 {
		return textHits, nil
	}

	// RRF(d) = sum over rankings of 1/(k + rank).
	const k = 60.0
	scores := make(map[string]float64, len(textHits))
	hitByKey := make(map[string]types.Hit, len(textHits))
	for rank, hit := range textHits {
		key := hitKey(hit)
		scores[key] += 1.0 / (k + float64(rank+1))
		hitByKey[key] = hit
	}
	for rank, key := range simRank {
		if _, ok := hitByKey[key]; !ok {
			// Similarity-only documents are not part of the text match set;
			// they would carry no match classification.
			continue
		}
		scores[key] += 1.0 / (k + float64(rank+1))
	}

	blended := make([]types.Hit, 0, len(scores))
	for key, score := range scores {
		hit := hitByKey[key]
		hit.Score = score
		blended = append(blended, hit)
	}
	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].Score > blended[j].Score
	})
	return blended, nil
}

func hitKey(hit types.Hit) string {
	return fmt.Sprintf("%s\x00%d", hit.SourcePath, hit.MsgIdx)
}

// similarityRanking ranks stored vectors by cosine similarity to the query
// vector, best first, returning hit keys.
func (s *Searcher) similarityRanking(ctx context.Context, req SearchRequest, queryVec []float32, limit int) ([]string, error) {
	query := `
		SELECT m.source_path, m.msg_idx, e.vector
		FROM embeddings e
		JOIN messages m ON m.id = e.message_id
	`
	var args []any
	if clause, filterArgs := agentClause(req.Filters); clause != "" {
		query += " WHERE " + clause
		args = filterArgs
	}

	rows, err := s.reader.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		key   string
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var sourcePath string
		var msgIdx int
		var blob []byte
		if err := rows.Scan(&sourcePath, &msgIdx, &blob); err != nil {
			return nil, err
		}
		vec := index.DeserializeVector(blob)
		candidates = append(candidates, scored{
			key:   fmt.Sprintf("%s\x00%d", sourcePath, msgIdx),
			score: index.CosineSimilarity(queryVec, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.key
	}
	return keys, nil
}

package resolver

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/karimadel/borsa/internal/models"
)

// suggestDoc is what gets indexed per instrument for near-miss lookup.
// All text fields are pre-folded so index terms line up with query terms.
type suggestDoc struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	NameAR  string `json:"name_ar"`
	Aliases string `json:"aliases"`
	Sector  string `json:"sector"`
}

// Suggester is an in-memory full-text index over the instrument universe,
// used for "did you mean" suggestions when the cascade fails or ties.
type Suggester struct {
	index bleve.Index
	docs  map[string]suggestDoc // symbol → doc, for rendering suggestions
	names map[string][2]string  // symbol → display names (en, ar)
}

// NewSuggester builds the index from instruments and their aliases.
// fold must be the same normalization applied to queries.
func NewSuggester(instruments []*models.Instrument, aliases []*models.Alias, fold func(string) string) (*Suggester, error) {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	textField.Index = true
	for _, field := range []string{"symbol", "name", "name_ar", "aliases", "sector"} {
		docMapping.AddFieldMappingsAt(field, textField)
	}
	indexMapping.AddDocumentMapping("_default", docMapping)

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion index: %w", err)
	}

	aliasText := map[string][]string{}
	for _, a := range aliases {
		aliasText[a.Symbol] = append(aliasText[a.Symbol], a.AliasNorm)
	}

	s := &Suggester{
		index: index,
		docs:  make(map[string]suggestDoc, len(instruments)),
		names: make(map[string][2]string, len(instruments)),
	}

	batch := index.NewBatch()
	for _, inst := range instruments {
		doc := suggestDoc{
			Symbol:  strings.ToLower(inst.Symbol),
			Name:    fold(inst.NameEN),
			NameAR:  fold(inst.NameAR),
			Aliases: strings.Join(aliasText[inst.Symbol], " "),
			Sector:  fold(inst.Sector),
		}
		id := fmt.Sprintf("%s-%s", inst.Symbol, inst.Market)
		if err := batch.Index(id, doc); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", inst.Symbol, err)
		}
		s.docs[strings.ToLower(inst.Symbol)] = doc
		s.names[strings.ToLower(inst.Symbol)] = [2]string{inst.NameEN, inst.NameAR}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to build suggestion index: %w", err)
	}

	return s, nil
}

// Suggest returns up to limit near-miss instruments for a folded query,
// best match first.
func (s *Suggester) Suggest(folded string, limit int) []models.Suggestion {
	if s == nil || folded == "" || limit <= 0 {
		return nil
	}

	var clauses []query.Query
	for _, field := range []string{"symbol", "name", "name_ar", "aliases", "sector"} {
		mq := bleve.NewMatchQuery(folded)
		mq.SetField(field)
		mq.SetFuzziness(1)
		clauses = append(clauses, mq)

		pq := bleve.NewPrefixQuery(folded)
		pq.SetField(field)
		clauses = append(clauses, pq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(clauses...))
	req.Size = limit * 2 // duplicates across markets collapse below
	req.Fields = []string{"symbol"}

	result, err := s.index.Search(req)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var out []models.Suggestion
	for _, hit := range result.Hits {
		sym, _ := hit.Fields["symbol"].(string)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		names := s.names[sym]
		out = append(out, models.Suggestion{
			Symbol: strings.ToUpper(sym),
			NameEN: names[0],
			NameAR: names[1],
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Close releases the index.
func (s *Suggester) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}

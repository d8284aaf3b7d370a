package ops

import (
	"context"
	"sort"
	"strings"

	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query            string // required
	SessionID        string // optional, restricts the search to one session
	IncludeResponses bool
	Limit            int // default: 100, max: 1000
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Results []*prompt.Version `json:"results"`
	Total   int               `json:"total"`
}

// Search returns versions whose prompt (and, when requested, response)
// contains the query, case-insensitively, newest first.
func Search(ctx context.Context, store db.Backend, input SearchInput) (*SearchOutput, error) {
	query := strings.ToLower(strings.TrimSpace(input.Query))
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	limit := clampLimit(input.Limit, DefaultSearchLimit, MaxSearchLimit)

	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []*prompt.Version
	if sessionID := strings.TrimSpace(input.SessionID); sessionID != "" {
		if s, ok := d.Sessions[sessionID]; ok {
			candidates = d.SessionVersions(s)
		}
	} else {
		candidates = make([]*prompt.Version, 0, len(d.Versions))
		for _, v := range d.Versions {
			candidates = append(candidates, v)
		}
	}

	results := []*prompt.Version{}
	for _, v := range candidates {
		if matches(v, query, input.IncludeResponses) {
			results = append(results, v)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Timestamp != results[j].Timestamp {
			return results[i].Timestamp > results[j].Timestamp
		}
		return results[i].ID > results[j].ID
	})

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return &SearchOutput{Results: results, Total: total}, nil
}

func matches(v *prompt.Version, query string, includeResponses bool) bool {
	if strings.Contains(strings.ToLower(v.Prompt), query) {
		return true
	}
	return includeResponses && v.Response != nil &&
		strings.Contains(strings.ToLower(*v.Response), query)
}

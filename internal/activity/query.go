package activity

import (
	"context"
	"encoding/json"
	"strings"
)

// Query is the read-only filtering surface over the collection. It never
// mutates: every filter is a pure narrowing pass, so combining filters is set
// intersection regardless of the order the caller applies them in.
type Query struct {
	store LogStore
}

func NewQuery(store LogStore) *Query {
	return &Query{store: store}
}

// Search returns records whose description, type, or JSON-rendered details
// contain the query, case-insensitively. An empty query matches everything.
func (q *Query) Search(ctx context.Context, query string) ([]Log, error) {
	logs, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return searchLogs(wellFormed(logs), query), nil
}

// FilterByType returns records of the given type, newest first, capped at
// limit when limit > 0.
func (q *Query) FilterByType(ctx context.Context, typ Type, limit int) ([]Log, error) {
	logs, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	matches := filterLogs(wellFormed(logs), func(l Log) bool { return l.Type == typ })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// FilterByTimeRange returns records whose timestamp falls inside [start, end],
// bounds inclusive, both in ms since epoch.
func (q *Query) FilterByTimeRange(ctx context.Context, start, end int64) ([]Log, error) {
	logs, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return filterLogs(wellFormed(logs), func(l Log) bool {
		return l.Timestamp >= start && l.Timestamp <= end
	}), nil
}

// Criteria combines the reporting surface's filters. Zero values mean
// "no constraint" for their dimension.
type Criteria struct {
	Search string
	Type   Type
	Status Status
	Start  int64
	End    int64
	Limit  int
}

// Zero reports whether no dimension is constrained.
func (c Criteria) Zero() bool {
	return c == Criteria{}
}

// Filter applies search, then type, then status, then time range, each a
// narrowing pass over the previous result.
func (q *Query) Filter(ctx context.Context, c Criteria) ([]Log, error) {
	logs, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	matches := searchLogs(wellFormed(logs), c.Search)
	if c.Type != "" {
		matches = filterLogs(matches, func(l Log) bool { return l.Type == c.Type })
	}
	if c.Status != "" {
		matches = filterLogs(matches, func(l Log) bool { return l.Status == c.Status })
	}
	if c.Start > 0 || c.End > 0 {
		end := c.End
		if end == 0 {
			end = int64(1)<<62 - 1
		}
		matches = filterLogs(matches, func(l Log) bool {
			return l.Timestamp >= c.Start && l.Timestamp <= end
		})
	}
	if c.Limit > 0 && len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}
	return matches, nil
}

func searchLogs(logs []Log, query string) []Log {
	if query == "" {
		return logs
	}
	needle := strings.ToLower(query)
	return filterLogs(logs, func(l Log) bool {
		if strings.Contains(strings.ToLower(l.Description), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(string(l.Type)), needle) {
			return true
		}
		if l.Details != nil {
			if rendered, err := json.Marshal(l.Details); err == nil {
				return strings.Contains(strings.ToLower(string(rendered)), needle)
			}
		}
		return false
	})
}

func filterLogs(logs []Log, keep func(Log) bool) []Log {
	matches := make([]Log, 0, len(logs))
	for _, l := range logs {
		if keep(l) {
			matches = append(matches, l)
		}
	}
	return matches
}

// wellFormed drops records that fail shape validation so one malformed entry
// cannot take down the whole reporting surface.
func wellFormed(logs []Log) []Log {
	return filterLogs(logs, Log.Valid)
}

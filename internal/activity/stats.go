package activity

import (
	"context"
	"time"
)

// Stats summarizes the current collection. All fields are derived in a single
// pass; nothing here mutates state.
type Stats struct {
	Total           int            `json:"total"`
	ByType          map[Type]int   `json:"byType"`
	ByStatus        map[Status]int `json:"byStatus"`
	TodayCount      int            `json:"todayCount"`
	WeekCount       int            `json:"weekCount"`
	AverageDuration *float64       `json:"averageDuration,omitempty"`
	LastActivity    *Log           `json:"lastActivity,omitempty"`
}

// Aggregator computes summary metrics over the collection.
type Aggregator struct {
	store LogStore
	now   func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(store LogStore, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate computes the stats for the collection as currently stored.
// TodayCount uses local midnight; WeekCount uses a rolling 7-day window.
func (a *Aggregator) Aggregate(ctx context.Context) (Stats, error) {
	loaded, err := a.store.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	logs := wellFormed(loaded)

	now := a.now()
	year, month, day := now.Date()
	todayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).UnixMilli()
	weekStart := now.UnixMilli() - 7*24*time.Hour.Milliseconds()

	stats := Stats{
		Total:    len(logs),
		ByType:   make(map[Type]int),
		ByStatus: make(map[Status]int),
	}

	var durationSum int64
	var durationCount int
	for _, l := range logs {
		stats.ByType[l.Type]++
		stats.ByStatus[l.Status]++
		if l.Timestamp >= todayStart {
			stats.TodayCount++
		}
		if l.Timestamp >= weekStart {
			stats.WeekCount++
		}
		if l.Duration != nil {
			durationSum += *l.Duration
			durationCount++
		}
	}

	if durationCount > 0 {
		avg := float64(durationSum) / float64(durationCount)
		stats.AverageDuration = &avg
	}
	if len(logs) > 0 {
		last := logs[0] // collection is newest first
		stats.LastActivity = &last
	}
	return stats, nil
}

package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/gaf-clearance/internal/gaf"
)

var (
	// ErrNotFound is returned when no forecast is stored for a region and validity start.
	ErrNotFound = errors.New("no forecast for region and validity start")
)

// ForecastHistory holds the forecasts of one region keyed by validity start.
type ForecastHistory struct {
	byFrom map[string]gaf.Forecast
}

// MemoryStore is a concurrency-safe in-memory forecast store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: region, value: history
	data map[gaf.Region]*ForecastHistory

	// retention configuration
	maxHistory int           // max number of forecasts per region
	maxAge     time.Duration // drop forecasts whose validity ended longer ago than this
	clock      clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		data:       make(map[gaf.Region]*ForecastHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// Put inserts or replaces the forecast keyed by its From under region and enforces retention.
func (s *MemoryStore) Put(region gaf.Region, forecast gaf.Forecast) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[region]
	if !ok {
		history = &ForecastHistory{byFrom: make(map[string]gaf.Forecast)}
		s.data[region] = history
	}
	history.byFrom[forecast.From] = forecast

	// Enforce retention by age of the validity end.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		for from, f := range history.byFrom {
			till, err := time.Parse(time.RFC3339, f.Till)
			if err != nil || from == forecast.From {
				continue
			}
			if till.Before(cutoff) {
				delete(history.byFrom, from)
			}
		}
	}

	// Enforce retention by count, dropping the oldest validity starts other
	// than the one just written.
	if s.maxHistory > 0 {
		for _, from := range history.sortedFroms() {
			if len(history.byFrom) <= s.maxHistory {
				break
			}
			if from != forecast.From {
				delete(history.byFrom, from)
			}
		}
	}
}

// Get returns the forecast of region whose validity starts at from.
func (s *MemoryStore) Get(region gaf.Region, from string) (gaf.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[region]
	if !ok {
		return gaf.Forecast{}, ErrNotFound
	}
	f, ok := history.byFrom[from]
	if !ok {
		return gaf.Forecast{}, ErrNotFound
	}
	return f, nil
}

// ValidityWindows returns the distinct windows across all regions, ascending by From.
// When regions disagree on Till for the same From, the first one seen wins.
func (s *MemoryStore) ValidityWindows() []gaf.ValidityWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]gaf.ValidityWindow)
	for _, region := range gaf.Regions {
		history, ok := s.data[region]
		if !ok {
			continue
		}
		for _, from := range history.sortedFroms() {
			if _, dup := seen[from]; !dup {
				seen[from] = history.byFrom[from].Window()
			}
		}
	}

	result := make([]gaf.ValidityWindow, 0, len(seen))
	for _, w := range seen {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].From < result[j].From })
	return result
}

func (h *ForecastHistory) sortedFroms() []string {
	froms := make([]string, 0, len(h.byFrom))
	for from := range h.byFrom {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	return froms
}

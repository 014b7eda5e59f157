// Package viewstate holds the last-fetched solar API results for display, along
// with the loading flag and error message views render from.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/solar-cli/internal/aggregate"
	"github.com/sells-group/solar-cli/pkg/solar"
)

// Snapshot is a point-in-time copy of the store state.
type Snapshot struct {
	Summaries     []solar.StateSummary
	States        []solar.StateInfo
	Selected      string
	StateData     *solar.StateDetail
	Installations []solar.Installation
	Nationwide    *solar.NationwideStats
	Breakdown     *solar.StateBreakdown
	Loading       bool
	Err           string
}

// slot identifies one independently fetched piece of state.
type slot int

const (
	slotSummaries slot = iota
	slotStates
	slotStateData
	slotInstallations
	slotNationwide
	slotBreakdown
	numSlots
)

// Store caches fetched results and the fetch status. It is safe for concurrent use.
type Store struct {
	client solar.Client

	mu        sync.Mutex
	state     Snapshot
	errSlot   slot // owner of state.Err while it is set
	inflight  int
	gen       [numSlots]uint64
	stateMemo map[string]*solar.StateDetail

	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]func(Snapshot)
	nextID   int
}

// New creates a Store backed by the given API client.
func New(client solar.Client) *Store {
	return &Store{
		client:    client,
		stateMemo: make(map[string]*solar.StateDetail),
		subs:      make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := s.state
	snap.Summaries = append([]solar.StateSummary(nil), s.state.Summaries...)
	snap.States = append([]solar.StateInfo(nil), s.state.States...)
	snap.Installations = append([]solar.Installation(nil), s.state.Installations...)
	return snap
}

// Subscribe registers fn to receive a snapshot after every state change.
// Deliveries are serialized and never go backwards in time. fn must not call
// methods that change the store. The returned function removes the
// subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	snap := s.Snapshot()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// begin marks fetches for the given slots as started, clears the error and
// returns one generation per slot.
func (s *Store) begin(slots ...slot) []uint64 {
	gens := make([]uint64, len(slots))
	s.mu.Lock()
	for i, sl := range slots {
		s.inflight++
		s.gen[sl]++
		gens[i] = s.gen[sl]
	}
	s.state.Loading = true
	s.state.Err = ""
	s.mu.Unlock()

	s.notify()
	return gens
}

// finish applies the outcome of a fetch. Results from a superseded generation
// are dropped so a slow response cannot overwrite a newer one. On failure the
// previously held data is kept. The first failure owns Err: a later failure of
// another slot does not replace it and only the owning slot's success clears
// it.
func (s *Store) finish(sl slot, g uint64, err error, msg string, apply func()) {
	s.mu.Lock()
	s.inflight--
	if s.gen[sl] == g {
		switch {
		case err != nil:
			if s.state.Err == "" || s.errSlot == sl {
				s.state.Err = errorMessage(err, msg)
				s.errSlot = sl
			}
		default:
			apply()
			if s.errSlot == sl {
				s.state.Err = ""
			}
		}
	}
	s.state.Loading = s.inflight > 0
	s.mu.Unlock()

	if err != nil {
		zap.L().Error("viewstate: fetch failed", zap.String("what", msg), zap.Error(err))
	}
	s.notify()
}

// errorMessage returns the server-provided message when there is one and the
// fallback otherwise.
func errorMessage(err error, fallback string) string {
	var apiErr *solar.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to fetch " + fallback
}

// FetchSolarData loads the per-state capacity summaries.
func (s *Store) FetchSolarData(ctx context.Context) error {
	return s.loadSolarData(ctx, s.begin(slotSummaries)[0])
}

func (s *Store) loadSolarData(ctx context.Context, g uint64) error {
	rows, err := s.client.SolarStats(ctx)
	s.finish(slotSummaries, g, err, "solar data", func() {
		s.state.Summaries = rows
	})
	return err
}

// FetchStates loads the list of states with installations.
func (s *Store) FetchStates(ctx context.Context) error {
	return s.loadStates(ctx, s.begin(slotStates)[0])
}

func (s *Store) loadStates(ctx context.Context, g uint64) error {
	resp, err := s.client.States(ctx)
	s.finish(slotStates, g, err, "states", func() {
		s.state.States = resp.States
	})
	return err
}

// FetchStateData loads the detail for one state and selects it. Results are
// memoized per state code for the lifetime of the store.
func (s *Store) FetchStateData(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	cached, ok := s.stateMemo[code]
	if ok {
		// A memo hit still supersedes any fetch in flight for another state.
		s.gen[slotStateData]++
		s.state.StateData = cached
		s.state.Selected = code
		s.state.Err = ""
	}
	s.mu.Unlock()
	if ok {
		zap.L().Debug("viewstate: state cache hit", zap.String("state", code))
		s.notify()
		return nil
	}

	g := s.begin(slotStateData)[0]
	detail, err := s.client.State(ctx, code)
	s.finish(slotStateData, g, err, fmt.Sprintf("data for %s", code), func() {
		s.stateMemo[code] = detail
		s.state.StateData = detail
		s.state.Selected = code
	})
	return err
}

// FetchStateBreakdown loads the yearly and technology breakdown of one state.
func (s *Store) FetchStateBreakdown(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	g := s.begin(slotBreakdown)[0]
	breakdown, err := s.client.Breakdown(ctx, code)
	s.finish(slotBreakdown, g, err, fmt.Sprintf("breakdown for %s", code), func() {
		s.state.Breakdown = breakdown
	})
	return err
}

// FetchInstallations loads installations matching q.
func (s *Store) FetchInstallations(ctx context.Context, q solar.InstallationQuery) error {
	g := s.begin(slotInstallations)[0]
	insts, err := s.client.Installations(ctx, q)
	s.finish(slotInstallations, g, err, "installations", func() {
		s.state.Installations = insts
	})
	return err
}

// FetchNationwideStats loads the nationwide aggregate.
func (s *Store) FetchNationwideStats(ctx context.Context) error {
	return s.loadNationwideStats(ctx, s.begin(slotNationwide)[0])
}

func (s *Store) loadNationwideStats(ctx context.Context, g uint64) error {
	stats, err := s.client.Stats(ctx)
	s.finish(slotNationwide, g, err, "nationwide stats", func() {
		s.state.Nationwide = stats
	})
	return err
}

// Prefetch loads summaries, states and nationwide stats concurrently as one
// action. It returns the first error, which is also the one left in Err. A
// failure does not cancel the other requests.
func (s *Store) Prefetch(ctx context.Context) error {
	gens := s.begin(slotSummaries, slotStates, slotNationwide)

	var g errgroup.Group
	g.Go(func() error { return s.loadSolarData(ctx, gens[0]) })
	g.Go(func() error { return s.loadStates(ctx, gens[1]) })
	g.Go(func() error { return s.loadNationwideStats(ctx, gens[2]) })
	return g.Wait()
}

// SelectState marks code as the selected state without fetching.
func (s *Store) SelectState(code string) {
	s.mu.Lock()
	s.state.Selected = strings.ToUpper(strings.TrimSpace(code))
	s.mu.Unlock()
	s.notify()
}

// ClearSelectedState resets the selection, its detail and the error.
func (s *Store) ClearSelectedState() {
	s.mu.Lock()
	s.gen[slotStateData]++
	s.state.Selected = ""
	s.state.StateData = nil
	s.state.Err = ""
	s.mu.Unlock()
	s.notify()
}

// StateByCode returns the summary row for code, if loaded.
func (s *Store) StateByCode(code string) (solar.StateSummary, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.state.Summaries {
		if strings.EqualFold(row.State, code) {
			return row, true
		}
	}
	return solar.StateSummary{}, false
}

// StatesSortedByCapacity returns a copy of the loaded states ordered by total
// capacity, largest first.
func (s *Store) StatesSortedByCapacity() []solar.StateInfo {
	s.mu.Lock()
	states := append([]solar.StateInfo(nil), s.state.States...)
	s.mu.Unlock()

	aggregate.SortByCapacityDesc(states)
	return states
}

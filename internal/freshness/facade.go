// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package freshness

import (
	"context"
	"log/slog"
	"time"

	"github.com/l5-scheduler/l5/internal/metrics"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	pkgfreshness "github.com/l5-scheduler/l5/pkg/freshness"
)

// Probers supplies the upstream probe for each source. Nil entries make
// that source's probe fail.
type Probers struct {
	NESO     Prober
	WattTime Prober
	Fleet    Prober
}

// Options configures every tracker owned by a Facade.
type Options struct {
	StaleAfter time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Facade owns one tracker per upstream source. It is built once at the
// application root and passed to whatever needs freshness data.
type Facade struct {
	neso     *Tracker
	watttime *Tracker
	fleet    *Tracker
	order    []*Tracker
	nowFunc  func() time.Time
}

// NewFacade creates trackers for neso, watttime and fleet. The carbon
// trackers treat Update(nil) as now; the fleet tracker ignores it.
func NewFacade(p Probers, opts Options) *Facade {
	trackerOpts := []TrackerOption{
		WithStaleAfter(opts.StaleAfter),
		WithLogger(opts.Logger),
		WithMetrics(opts.Metrics),
	}

	f := &Facade{
		neso:     NewTracker(SourceNESO, NilMeansNow, p.NESO, trackerOpts...),
		watttime: NewTracker(SourceWattTime, NilMeansNow, p.WattTime, trackerOpts...),
		fleet:    NewTracker(SourceFleet, NilIgnored, p.Fleet, trackerOpts...),
		nowFunc:  time.Now,
	}
	f.order = []*Tracker{f.neso, f.watttime, f.fleet}
	return f
}

// Trackers returns the trackers in display order.
func (f *Facade) Trackers() []*Tracker {
	out := make([]*Tracker, len(f.order))
	copy(out, f.order)
	return out
}

// Tracker returns the tracker for source.
func (f *Facade) Tracker(source Source) (*Tracker, error) {
	for _, t := range f.order {
		if t.source == source {
			return t, nil
		}
	}
	return nil, l5err.New(l5err.CodeFreshnessSourceNotFound, "unknown freshness source",
		l5err.FieldSource(string(source)))
}

// SetNowFunc overrides the clock of every tracker. Intended for tests.
func (f *Facade) SetNowFunc(fn func() time.Time) {
	f.nowFunc = fn
	for _, t := range f.order {
		t.SetNowFunc(fn)
	}
}

// UpdateNESO records the NESO feed time. Nil means now.
func (f *Facade) UpdateNESO(ts *time.Time) { f.neso.Update(ts) }

func (f *Facade) GetNESO() pkgfreshness.Snapshot { return f.neso.Get() }

func (f *Facade) RefreshNESOFromAPI(ctx context.Context) bool {
	return f.neso.RefreshFromAPI(ctx)
}

// UpdateWattTime records the WattTime feed time. Nil means now.
func (f *Facade) UpdateWattTime(ts *time.Time) { f.watttime.Update(ts) }

func (f *Facade) GetWattTime() pkgfreshness.Snapshot { return f.watttime.Get() }

func (f *Facade) RefreshWattTimeFromAPI(ctx context.Context) bool {
	return f.watttime.RefreshFromAPI(ctx)
}

// UpdateAvailability records the capacity feed time. Nil is ignored.
func (f *Facade) UpdateAvailability(ts *time.Time) { f.fleet.Update(ts) }

func (f *Facade) GetAvailability() pkgfreshness.Snapshot { return f.fleet.Get() }

func (f *Facade) RefreshAvailabilityFromAPI(ctx context.Context) bool {
	return f.fleet.RefreshFromAPI(ctx)
}

// GetCarbonFreshness reports the fresher of the two carbon sources, or an
// unobserved snapshot when neither has a timestamp.
func (f *Facade) GetCarbonFreshness() pkgfreshness.Snapshot {
	a, b := f.neso.Get(), f.watttime.Get()
	latest := a.LastUpdated
	if b.LastUpdated != nil && (latest == nil || b.LastUpdated.After(*latest)) {
		latest = b.LastUpdated
	}
	return pkgfreshness.New(latest, a.StaleAfter)
}

// UpdateCarbonFreshness applies ts to both carbon trackers. A nil ts is
// resolved to now once so both trackers record the same instant.
func (f *Facade) UpdateCarbonFreshness(ts *time.Time) {
	if ts == nil {
		now := f.nowFunc()
		ts = &now
	}
	f.neso.Update(ts)
	f.watttime.Update(ts)
}

// Snapshots returns every tracker's snapshot keyed by source.
func (f *Facade) Snapshots() map[Source]pkgfreshness.Snapshot {
	out := make(map[Source]pkgfreshness.Snapshot, len(f.order))
	for _, t := range f.order {
		out[t.source] = t.Get()
	}
	return out
}

// Reports evaluates every tracker at now, in display order.
func (f *Facade) Reports(now time.Time) []pkgfreshness.Report {
	out := make([]pkgfreshness.Report, 0, len(f.order))
	for _, t := range f.order {
		out = append(out, t.Get().Report(string(t.source), now))
	}
	return out
}

// Commit applies each successful result to its tracker and returns how many
// were applied.
func (f *Facade) Commit(results []Result) int {
	applied := 0
	for _, res := range results {
		t, err := f.Tracker(res.Source)
		if err != nil {
			continue
		}
		if t.Commit(res) {
			applied++
		}
	}
	return applied
}

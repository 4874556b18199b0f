package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/internal/timerange"
	"github.com/platformbuilds/mirador-servicehealth/internal/tracing"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// Widget names, also used as metric and span labels.
const (
	WidgetTopServices     = "top_services"
	WidgetTopDependencies = "top_dependencies"
	WidgetServiceTable    = "service_table"
)

// HealthSource computes the dashboard widgets; ServiceHealthService is the
// production implementation.
type HealthSource interface {
	TopServiceFaults(ctx context.Context, window models.TimeWindow, env string, k int) (*models.RankedWidget, error)
	TopDependencyFaults(ctx context.Context, window models.TimeWindow, env, service string, k int) (*models.RankedWidget, error)
	ServiceTable(ctx context.Context, window models.TimeWindow, env string, filter models.FilterState) (*models.ServiceTable, error)
}

// DashboardInputs are everything a refresh depends on. Bumping RefreshToken
// forces a refetch with otherwise unchanged inputs.
type DashboardInputs struct {
	Window       models.TimeWindow
	Environment  string
	Service      string
	Filter       models.FilterState
	RefreshToken uint64
	TopK         int
}

// Dashboard owns the result holders of the three widgets. Each widget is
// refetched only when the inputs it depends on change.
type Dashboard struct {
	source HealthSource
	logger logger.Logger
	tracer *tracing.HealthTracer
	now    func() time.Time

	topServices     *ResultHolder[*models.RankedWidget]
	topDependencies *ResultHolder[*models.RankedWidget]
	serviceTable    *ResultHolder[*models.ServiceTable]

	mu        sync.Mutex
	keys      map[string]string
	window    models.TimeWindow
	lastToken uint64
	onCommit  []func(models.DashboardState)
}

func NewDashboard(source HealthSource, logger logger.Logger) *Dashboard {
	return &Dashboard{
		source:          source,
		logger:          logger,
		tracer:          tracing.NewHealthTracer(nil),
		now:             time.Now,
		topServices:     NewResultHolder[*models.RankedWidget](WidgetTopServices),
		topDependencies: NewResultHolder[*models.RankedWidget](WidgetTopDependencies),
		serviceTable:    NewResultHolder[*models.ServiceTable](WidgetServiceTable),
		keys:            map[string]string{},
	}
}

// WithTracer replaces the tracer.
func (d *Dashboard) WithTracer(t *tracing.HealthTracer) *Dashboard {
	d.tracer = t
	return d
}

// OnCommit registers fn to receive the dashboard state after every refresh
// that committed at least one widget.
func (d *Dashboard) OnCommit(fn func(models.DashboardState)) {
	d.mu.Lock()
	d.onCommit = append(d.onCommit, fn)
	d.mu.Unlock()
}

type widgetJob struct {
	name   string
	key    string
	window models.TimeWindow
	gen    uint64
	run    func(ctx context.Context, job widgetJob, cycleID string) (bool, error)
}

// Refresh refetches the widgets whose inputs changed since their last fetch
// and waits for them. It returns the resulting state and whether anything was
// committed; a fetch overtaken by a newer refresh is dropped.
func (d *Dashboard) Refresh(ctx context.Context, in DashboardInputs) (models.DashboardState, bool) {
	jobs, bypass := d.pending(in)
	if len(jobs) == 0 {
		return d.State(), false
	}
	if bypass {
		ctx = WithCacheBypass(ctx)
	}

	cycleID := uuid.New().String()
	ctx, span := d.tracer.StartRefreshSpan(ctx, cycleID, in.RefreshToken)
	defer span.End()

	log := d.logger.With("cycle_id", cycleID)
	log.Debug("Dashboard refresh started", "widgets", len(jobs), "refresh_token", in.RefreshToken)

	var (
		wg        sync.WaitGroup
		committed = make([]bool, len(jobs))
	)
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job widgetJob) {
			defer wg.Done()
			wctx, wspan := d.tracer.StartWidgetSpan(ctx, job.name, job.gen)
			defer wspan.End()

			start := time.Now()
			kept, err := d.runJob(wctx, job, cycleID)
			outcome := "success"
			switch {
			case !kept:
				outcome = "stale"
			case err != nil:
				outcome = "error"
				d.tracer.RecordError(wspan, err, attribute.String("widget", job.name))
				log.Warn("Widget refresh failed", "widget", job.name, "error", err)
			}
			monitoring.RecordWidgetRefresh(job.name, outcome, time.Since(start))
			committed[i] = kept
		}(i, job)
	}
	wg.Wait()

	changed := false
	for _, c := range committed {
		changed = changed || c
	}
	state := d.State()
	if changed {
		d.mu.Lock()
		hooks := append([]func(models.DashboardState){}, d.onCommit...)
		d.mu.Unlock()
		for _, fn := range hooks {
			fn(state)
		}
	}
	return state, changed
}

// runJob converts a panic inside a widget into an unknown error committed to
// that widget only.
func (d *Dashboard) runJob(ctx context.Context, job widgetJob, cycleID string) (kept bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverQueryError(r)
			kept = d.commitError(job, cycleID, err)
		}
	}()
	return job.run(ctx, job, cycleID)
}

// pending records the new per-widget keys, issues a generation for every
// widget to fetch and returns them. Keys and generations are written in one
// critical section so the newest generation always belongs to the newest key.
// A changed refresh token also skips the query cache.
func (d *Dashboard) pending(in DashboardInputs) ([]widgetJob, bool) {
	win, _ := json.Marshal(in.Window)
	filter, _ := json.Marshal(in.Filter)
	base := fmt.Sprintf("%s|%s|%d", win, in.Environment, in.RefreshToken)

	all := []widgetJob{
		{
			name: WidgetTopServices,
			key:  fmt.Sprintf("%s|%d", base, in.TopK),
			run: func(ctx context.Context, job widgetJob, cycleID string) (bool, error) {
				w, err := d.source.TopServiceFaults(ctx, in.Window, in.Environment, in.TopK)
				return commitTo(d, d.topServices, job, cycleID, w, err), err
			},
		},
		{
			name: WidgetTopDependencies,
			key:  fmt.Sprintf("%s|%s|%d", base, in.Service, in.TopK),
			run: func(ctx context.Context, job widgetJob, cycleID string) (bool, error) {
				w, err := d.source.TopDependencyFaults(ctx, in.Window, in.Environment, in.Service, in.TopK)
				return commitTo(d, d.topDependencies, job, cycleID, w, err), err
			},
		},
		{
			name: WidgetServiceTable,
			key:  fmt.Sprintf("%s|%s", base, filter),
			run: func(ctx context.Context, job widgetJob, cycleID string) (bool, error) {
				t, err := d.source.ServiceTable(ctx, in.Window, in.Environment, in.Filter)
				return commitTo(d, d.serviceTable, job, cycleID, t, err), err
			},
		},
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	bypass := in.RefreshToken != d.lastToken
	d.lastToken = in.RefreshToken
	var jobs []widgetJob
	for _, job := range all {
		if d.keys[job.name] == job.key {
			continue
		}
		d.keys[job.name] = job.key
		job.window = in.Window
		job.gen = d.begin(job.name)
		jobs = append(jobs, job)
	}
	return jobs, bypass
}

// begin must be called with d.mu held.
func (d *Dashboard) begin(widget string) uint64 {
	switch widget {
	case WidgetTopServices:
		return d.topServices.Begin()
	case WidgetTopDependencies:
		return d.topDependencies.Begin()
	default:
		return d.serviceTable.Begin()
	}
}

// commitTo commits a widget result and, when it is kept, records the window
// it was fetched for as the dashboard window.
func commitTo[T any](d *Dashboard, h *ResultHolder[T], job widgetJob, cycleID string, data T, err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := h.Commit(job.gen, cycleID, data, err, d.now())
	if kept {
		d.window = job.window
	}
	return kept
}

func (d *Dashboard) commitError(job widgetJob, cycleID string, err error) bool {
	switch job.name {
	case WidgetTopServices:
		return commitTo(d, d.topServices, job, cycleID, nil, err)
	case WidgetTopDependencies:
		return commitTo(d, d.topDependencies, job, cycleID, nil, err)
	default:
		return commitTo(d, d.serviceTable, job, cycleID, nil, err)
	}
}

// State is the last committed state of every widget.
func (d *Dashboard) State() models.DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc := timerange.Describe(d.window)
	return models.DashboardState{
		Window:          d.window,
		Tick:            desc.Tick,
		Bucket:          desc.Bucket,
		TopServices:     d.topServices.Snapshot(),
		TopDependencies: d.topDependencies.Snapshot(),
		ServiceTable:    d.serviceTable.Snapshot(),
	}
}

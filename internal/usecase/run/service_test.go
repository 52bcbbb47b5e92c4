package run

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/domain/record"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
)

// --- Mocks ---

type mockDiscoverer struct {
	segs  []segment.Segment
	err   error
	calls int
}

func (m *mockDiscoverer) Discover(_ context.Context) ([]segment.Segment, error) {
	m.calls++
	return m.segs, m.err
}

type mockBounds struct {
	bounds map[int]int
	ranges []key.Range
}

func (m *mockBounds) Bound(_ context.Context, prefix int, r key.Range) int {
	m.ranges = append(m.ranges, r)
	return m.bounds[prefix]
}

type mockHarvester struct {
	calls []int
}

func (m *mockHarvester) Harvest(_ context.Context, seg segment.Segment, bound int) segment.Result {
	m.calls = append(m.calls, seg.PrefixID())
	res := segment.Result{Segment: seg, Bound: bound}
	for s := 1; s <= bound; s++ {
		res.Records = append(res.Records, record.Reconstruct("", "", s, nil))
	}
	return res
}

type mockCheckpoint struct {
	segs    []segment.Segment
	hasSegs bool
	results map[int]segment.Result
	loadErr error
	saveErr error

	savedSegs    int
	savedResults []int
	cleared      []int
}

func (m *mockCheckpoint) LoadSegments(_ context.Context) ([]segment.Segment, bool, error) {
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	return m.segs, m.hasSegs, nil
}

func (m *mockCheckpoint) SaveSegments(_ context.Context, segs []segment.Segment) error {
	m.savedSegs++
	m.segs, m.hasSegs = segs, true
	return m.saveErr
}

func (m *mockCheckpoint) LoadResult(_ context.Context, prefixID int) (segment.Result, bool, error) {
	if m.loadErr != nil {
		return segment.Result{}, false, m.loadErr
	}
	res, ok := m.results[prefixID]
	return res, ok, nil
}

func (m *mockCheckpoint) SaveResult(_ context.Context, res *segment.Result) error {
	m.savedResults = append(m.savedResults, res.Segment.PrefixID())
	if m.results != nil && m.saveErr == nil {
		m.results[res.Segment.PrefixID()] = *res
	}
	return m.saveErr
}

func (m *mockCheckpoint) Clear(_ context.Context, prefixIDs []int) error {
	m.cleared = prefixIDs
	return nil
}

type mockFailures struct{ n int64 }

func (m *mockFailures) TransportFailures() int64 { return m.n }

// flakyDiscoverer and flakyHarvester bump the failure total as an upstream
// outage would while still returning their (possibly empty) output.
type flakyDiscoverer struct {
	mockDiscoverer
	fc *mockFailures
}

func (m *flakyDiscoverer) Discover(ctx context.Context) ([]segment.Segment, error) {
	m.fc.n += 3
	return m.mockDiscoverer.Discover(ctx)
}

type flakyHarvester struct {
	mockHarvester
	fc     *mockFailures
	prefix int
}

func (m *flakyHarvester) Harvest(ctx context.Context, seg segment.Segment, bound int) segment.Result {
	if seg.PrefixID() == m.prefix {
		m.fc.n++
	}
	return m.mockHarvester.Harvest(ctx, seg, bound)
}

type mockExporter struct {
	got []segment.Result
	err error
}

func (m *mockExporter) Export(_ context.Context, results []segment.Result) error {
	m.got = results
	return m.err
}

var span = key.Range{Low: 1, High: 1000}

func twoSegments() *mockDiscoverer {
	return &mockDiscoverer{segs: []segment.Segment{segment.New(1, "A"), segment.New(3, "C")}}
}

// --- Tests ---

func TestRun_PipelineInPrefixOrder(t *testing.T) {
	disc := twoSegments()
	bounds := &mockBounds{bounds: map[int]int{1: 4, 3: 2}}
	harv := &mockHarvester{}
	exp := &mockExporter{}

	rep, err := New(disc, bounds, harv, span).WithExporter(exp).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rep.Results) != 2 || rep.Results[0].Segment.PrefixID() != 1 || rep.Results[1].Segment.PrefixID() != 3 {
		t.Fatalf("unexpected results %+v", rep.Results)
	}
	if rep.Records != 6 || rep.Resumed != 0 {
		t.Errorf("records=%d resumed=%d", rep.Records, rep.Resumed)
	}
	if len(exp.got) != 2 {
		t.Errorf("exporter received %d results", len(exp.got))
	}
	for _, r := range bounds.ranges {
		if r != span {
			t.Errorf("bound finder got range %+v, want %+v", r, span)
		}
	}
	for _, res := range rep.Results {
		if res.Len() > res.Bound {
			t.Errorf("prefix %d: %d records exceed bound %d", res.Segment.PrefixID(), res.Len(), res.Bound)
		}
	}
}

func TestRun_NoExporter(t *testing.T) {
	rep, err := New(twoSegments(), &mockBounds{}, &mockHarvester{}, span).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Results) != 2 || rep.Records != 0 {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestRun_ExportError(t *testing.T) {
	exp := &mockExporter{err: errors.New("disk full")}
	rep, err := New(twoSegments(), &mockBounds{}, &mockHarvester{}, span).WithExporter(exp).Run(context.Background())
	if err == nil {
		t.Fatal("expected export error")
	}
	if len(rep.Results) != 2 {
		t.Error("results must be returned even when export fails")
	}
}

func TestRun_DiscoveryError(t *testing.T) {
	disc := &mockDiscoverer{err: context.Canceled}
	if _, err := New(disc, &mockBounds{}, &mockHarvester{}, span).Run(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestRun_InvalidSpan(t *testing.T) {
	disc := twoSegments()
	if _, err := New(disc, &mockBounds{}, &mockHarvester{}, key.Range{Low: 0, High: 10}).Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid span")
	}
	if disc.calls != 0 {
		t.Error("discovery must not run with an invalid span")
	}
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	disc := twoSegments()
	harv := &mockHarvester{}
	cp := &mockCheckpoint{
		segs:    disc.segs,
		hasSegs: true,
		results: map[int]segment.Result{
			1: {Segment: segment.New(1, "A"), Bound: 5, Records: make([]record.Record, 5)},
		},
	}

	rep, err := New(disc, &mockBounds{bounds: map[int]int{3: 2}}, harv, span).
		WithCheckpoint(cp, false).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if disc.calls != 0 {
		t.Error("discovery must be skipped when segments are checkpointed")
	}
	if len(harv.calls) != 1 || harv.calls[0] != 3 {
		t.Errorf("expected only prefix 3 harvested, got %v", harv.calls)
	}
	if rep.Resumed != 1 || rep.Records != 7 {
		t.Errorf("resumed=%d records=%d", rep.Resumed, rep.Records)
	}
	if len(cp.savedResults) != 1 || cp.savedResults[0] != 3 {
		t.Errorf("expected prefix 3 checkpointed, got %v", cp.savedResults)
	}
}

func TestRun_CheckpointFailuresDegrade(t *testing.T) {
	disc := twoSegments()
	harv := &mockHarvester{}
	cp := &mockCheckpoint{loadErr: errors.New("conn refused"), saveErr: errors.New("conn refused")}

	rep, err := New(disc, &mockBounds{bounds: map[int]int{1: 1, 3: 1}}, harv, span).
		WithCheckpoint(cp, false).
		Run(context.Background())
	if err != nil {
		t.Fatalf("checkpoint failures must not fail the run: %v", err)
	}
	if disc.calls != 1 || len(harv.calls) != 2 || rep.Records != 2 {
		t.Errorf("expected full run, got discover=%d harvest=%v records=%d", disc.calls, harv.calls, rep.Records)
	}
}

func TestRun_FreshIgnoresAndClearsCheckpoint(t *testing.T) {
	disc := twoSegments()
	harv := &mockHarvester{}
	cp := &mockCheckpoint{
		segs:    []segment.Segment{segment.New(9, "stale")},
		hasSegs: true,
		results: map[int]segment.Result{1: {Segment: segment.New(1, "A"), Bound: 99}},
	}

	rep, err := New(disc, &mockBounds{}, harv, span).WithCheckpoint(cp, true).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if disc.calls != 1 || len(harv.calls) != 2 || rep.Resumed != 0 {
		t.Errorf("fresh run must rediscover and reharvest: discover=%d harvest=%v", disc.calls, harv.calls)
	}
	if len(cp.cleared) != 2 || cp.savedSegs != 1 {
		t.Errorf("cleared=%v savedSegs=%d", cp.cleared, cp.savedSegs)
	}
}

func TestRun_CancelledBetweenSegments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	harv := &mockHarvester{}
	exp := &mockExporter{}
	_, err := New(twoSegments(), &mockBounds{}, harv, span).WithExporter(exp).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(harv.calls) != 0 || exp.got != nil {
		t.Error("nothing should be harvested or exported after cancel")
	}
}

type cancellingHarvester struct {
	mockHarvester
	cancel context.CancelFunc
}

func (m *cancellingHarvester) Harvest(ctx context.Context, seg segment.Segment, bound int) segment.Result {
	m.cancel()
	return m.mockHarvester.Harvest(ctx, seg, 1)
}

func TestRun_CancelledDuringLastHarvest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disc := &mockDiscoverer{segs: []segment.Segment{segment.New(1, "Ha Noi")}}
	harv := &cancellingHarvester{cancel: cancel}
	cp := &mockCheckpoint{results: map[int]segment.Result{}}
	exp := &mockExporter{}

	_, err := New(disc, &mockBounds{bounds: map[int]int{1: 5}}, harv, span).
		WithCheckpoint(cp, false).
		WithExporter(exp).
		Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if exp.got != nil {
		t.Error("partial results must not be exported")
	}
	if len(cp.savedResults) != 0 {
		t.Errorf("partial harvest must not be checkpointed, saved %v", cp.savedResults)
	}
}

func TestRun_Progress(t *testing.T) {
	p := NewProgress()
	if p.Snapshot().Phase != PhaseIdle {
		t.Fatalf("expected idle, got %q", p.Snapshot().Phase)
	}

	_, err := New(twoSegments(), &mockBounds{bounds: map[int]int{1: 2, 3: 3}}, &mockHarvester{}, span).
		WithExporter(&mockExporter{}).
		WithProgress(p).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := p.Snapshot()
	if s.Phase != PhaseDone || s.Segments != 2 || s.SegmentsDone != 2 || s.Records != 5 {
		t.Errorf("unexpected snapshot %+v", s)
	}
	if s.CurrentPrefix != 0 || s.StartedAt.IsZero() || s.UpdatedAt.Before(s.StartedAt) {
		t.Errorf("unexpected timestamps/current segment %+v", s)
	}

	_, _ = New(twoSegments(), &mockBounds{}, &mockHarvester{}, span).
		WithExporter(&mockExporter{err: errors.New("boom")}).
		WithProgress(p).
		Run(context.Background())
	if p.Snapshot().Phase != PhaseFailed {
		t.Errorf("expected failed phase, got %q", p.Snapshot().Phase)
	}
}

func TestRun_EmptyDiscoveryNotCheckpointed(t *testing.T) {
	cp := &mockCheckpoint{results: map[int]segment.Result{}}

	// upstream down: every probe is absent
	outage := &mockDiscoverer{}
	rep, err := New(outage, &mockBounds{}, &mockHarvester{}, span).WithCheckpoint(cp, false).Run(context.Background())
	if err != nil {
		t.Fatalf("outage run: %v", err)
	}
	if len(rep.Results) != 0 || cp.savedSegs != 0 {
		t.Fatalf("empty discovery must not be saved: results=%d savedSegs=%d", len(rep.Results), cp.savedSegs)
	}

	disc := twoSegments()
	rep, err = New(disc, &mockBounds{bounds: map[int]int{1: 2, 3: 3}}, &mockHarvester{}, span).
		WithCheckpoint(cp, false).
		Run(context.Background())
	if err != nil {
		t.Fatalf("recovered run: %v", err)
	}
	if disc.calls != 1 || len(rep.Results) != 2 || rep.Records != 5 {
		t.Errorf("recovered run must rediscover: calls=%d segments=%d records=%d",
			disc.calls, len(rep.Results), rep.Records)
	}
	if cp.savedSegs != 1 {
		t.Errorf("recovered discovery must be saved, savedSegs=%d", cp.savedSegs)
	}
}

func TestRun_ZeroBoundNotCheckpointed(t *testing.T) {
	cp := &mockCheckpoint{results: map[int]segment.Result{}}

	_, err := New(twoSegments(), &mockBounds{bounds: map[int]int{1: 0, 3: 2}}, &mockHarvester{}, span).
		WithCheckpoint(cp, false).
		Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(cp.savedResults) != 1 || cp.savedResults[0] != 3 {
		t.Fatalf("only prefix 3 should be saved, got %v", cp.savedResults)
	}

	harv := &mockHarvester{}
	rep, err := New(twoSegments(), &mockBounds{bounds: map[int]int{1: 4}}, harv, span).
		WithCheckpoint(cp, false).
		Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(harv.calls) != 1 || harv.calls[0] != 1 {
		t.Errorf("prefix 1 must be retried and prefix 3 resumed, harvested %v", harv.calls)
	}
	if rep.Resumed != 1 || rep.Records != 6 {
		t.Errorf("resumed=%d records=%d", rep.Resumed, rep.Records)
	}
}

func TestRun_TransportFailuresNotCheckpointed(t *testing.T) {
	fc := &mockFailures{}
	disc := &flakyDiscoverer{mockDiscoverer: *twoSegments(), fc: fc}
	harv := &flakyHarvester{fc: fc, prefix: 1}
	cp := &mockCheckpoint{results: map[int]segment.Result{}}

	rep, err := New(disc, &mockBounds{bounds: map[int]int{1: 4, 3: 2}}, harv, span).
		WithCheckpoint(cp, false).
		WithFailureCounter(fc).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Records != 6 {
		t.Errorf("failures must not drop results from this run, records=%d", rep.Records)
	}
	if cp.savedSegs != 0 {
		t.Error("discovery with transport failures must not be saved")
	}
	if len(cp.savedResults) != 1 || cp.savedResults[0] != 3 {
		t.Errorf("only the clean segment should be saved, got %v", cp.savedResults)
	}
}

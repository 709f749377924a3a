package collect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// fakeConnector returns data named after the source, after an optional delay.
// A stubborn connector waits out its delay even when ctx is cancelled.
type fakeConnector struct {
	typ      string
	delay    time.Duration
	stubborn bool
	err      error
	invalid  bool
	calls    atomic.Int32
}

func (f *fakeConnector) Type() string                   { return f.typ }
func (f *fakeConnector) Category() connector.Category   { return connector.CategoryCodeHost }
func (f *fakeConnector) DisplayName() string            { return f.typ }
func (f *fakeConnector) Description() string            { return "fake " + f.typ }
func (f *fakeConnector) RequiredConfigFields() []string { return nil }
func (f *fakeConnector) OptionalConfigFields() []string { return nil }

func (f *fakeConnector) ValidateConfig(config.Source) []error {
	if f.invalid {
		return []error{errors.New("missing field")}
	}
	return nil
}

func (f *fakeConnector) Collect(ctx context.Context, src config.Source) (*models.ProjectData, error) {
	f.calls.Add(1)
	if f.stubborn {
		time.Sleep(f.delay)
	} else if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &connector.ConnectionError{Type: f.typ, Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProjectData{
		Repository:    models.Repository{Name: src.Name, FullName: "acme/" + src.Name, Languages: []string{}, Topics: []string{}},
		Releases:      []models.Release{},
		TechnicalData: &models.TechnicalData{Commits: []models.TechnicalCommit{{SHA: src.Name}}},
		CollectedAt:   time.Now(),
		SourceType:    models.SourceCustom,
		SourceConfig:  src.Redacted(),
	}, nil
}

type fixture struct {
	registry *connector.Registry
	ok       *fakeConnector
	broken   *fakeConnector
	invalid  *fakeConnector
	slow     *fakeConnector
}

func newFixture() *fixture {
	f := &fixture{
		registry: connector.NewRegistry(nil),
		ok:       &fakeConnector{typ: "ok"},
		broken:   &fakeConnector{typ: "broken", err: &connector.ConnectionError{Type: "broken", Err: errors.New("refused")}},
		invalid:  &fakeConnector{typ: "invalid", invalid: true},
		slow:     &fakeConnector{typ: "slow", delay: 200 * time.Millisecond},
	}
	for _, c := range []*fakeConnector{f.ok, f.broken, f.invalid, f.slow} {
		f.registry.Register(c)
	}
	return f
}

func source(t *testing.T, typ, name string) config.Source {
	t.Helper()
	src, err := config.ParseSource(map[string]any{"type": typ, "name": name})
	require.NoError(t, err)
	return src
}

var project = config.ProjectConfig{Name: "wara9a", Description: "Docs generator"}

func TestCollectNoSources(t *testing.T) {
	f := newFixture()
	disabled := source(t, "ok", "off")
	disabled.Enabled = false

	result, err := NewOrchestrator(f.registry, Options{Project: project}).
		Collect(context.Background(), []config.Source{disabled})
	require.NoError(t, err)

	require.NotNil(t, result.Data)
	assert.Equal(t, "wara9a", result.Data.Repository.Name)
	assert.Equal(t, "Docs generator", result.Data.Repository.Description)
	assert.Nil(t, result.Data.FunctionalData)
	assert.Nil(t, result.Data.TechnicalData)
	assert.Empty(t, result.Outcomes)
	assert.NotEmpty(t, result.RunID)
	assert.Zero(t, f.ok.calls.Load())
}

func TestCollectSingleSuccessAnyPosition(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		for position := 0; position < 3; position++ {
			f := newFixture()
			sources := []config.Source{
				source(t, "broken", "s0"),
				source(t, "invalid", "s1"),
				source(t, "missing-type", "s2"),
			}
			sources[position] = source(t, "ok", "winner")

			result, err := NewOrchestrator(f.registry, Options{Project: project, Parallel: parallel}).
				Collect(context.Background(), sources)
			require.NoError(t, err)

			assert.Equal(t, "winner", result.Data.Repository.Name, "position %d parallel %v", position, parallel)
			assert.Equal(t, 1, result.Succeeded())
			assert.Len(t, result.Outcomes, 3)
			assert.True(t, result.Outcomes[position].Success)
		}
	}
}

func TestCollectFirstSuccessWins(t *testing.T) {
	f := newFixture()
	sources := []config.Source{
		source(t, "ok", "first"),
		source(t, "broken", "middle"),
		source(t, "ok", "last"),
	}

	result, err := NewOrchestrator(f.registry, Options{Project: project}).Collect(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, "first", result.Data.Repository.Name)
	require.Len(t, result.Outcomes, 3, "the failure does not abort the run")
	assert.True(t, result.Outcomes[0].Success)
	assert.False(t, result.Outcomes[1].Success)
	assert.Equal(t, "middle", result.Outcomes[1].SourceName)
	var connErr *connector.ConnectionError
	assert.True(t, errors.As(result.Outcomes[1].Err, &connErr))
	assert.True(t, result.Outcomes[2].Success)
	assert.Equal(t, int32(2), f.ok.calls.Load())
}

func TestCollectParallelKeepsDeclaredOrder(t *testing.T) {
	f := newFixture()
	sources := []config.Source{
		source(t, "slow", "declared-first"),
		source(t, "ok", "finishes-first"),
	}

	result, err := NewOrchestrator(f.registry, Options{Project: project, Parallel: true}).
		Collect(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, "declared-first", result.Data.Repository.Name)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "declared-first", result.Outcomes[0].SourceName)
}

func TestCollectIdempotent(t *testing.T) {
	f := newFixture()
	sources := []config.Source{source(t, "ok", "repo")}
	orch := NewOrchestrator(f.registry, Options{Project: project})

	first, err := orch.Collect(context.Background(), sources)
	require.NoError(t, err)
	second, err := orch.Collect(context.Background(), sources)
	require.NoError(t, err)

	a, b := *first.Data, *second.Data
	a.CollectedAt, b.CollectedAt = time.Time{}, time.Time{}
	assert.Equal(t, a, b)
	assert.NotSame(t, first.Data, second.Data)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestCollectAbortPolicy(t *testing.T) {
	f := newFixture()
	sources := []config.Source{
		source(t, "ok", "first"),
		source(t, "invalid", "bad"),
		source(t, "ok", "never"),
	}

	result, err := NewOrchestrator(f.registry, Options{Project: project, FailurePolicy: config.FailAbort}).
		Collect(context.Background(), sources)
	require.Error(t, err)
	var cfgErr *connector.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "source bad failed")

	require.NotNil(t, result)
	require.Len(t, result.Outcomes, 3)
	assert.True(t, result.Outcomes[2].Skipped, "no source starts after the failure")
	assert.ErrorIs(t, result.Outcomes[2].Err, ErrNotAttempted)
	assert.ErrorIs(t, result.Outcomes[2].Err, ErrAborted)
	assert.Len(t, result.Failures(), 1)
	assert.Len(t, result.Skipped(), 1)
	assert.Equal(t, "first", result.Data.Repository.Name)
	assert.Equal(t, int32(1), f.ok.calls.Load())
	assert.Zero(t, f.invalid.calls.Load(), "invalid sources are never collected")
}

func TestCollectParallelAbortCancelsOthers(t *testing.T) {
	f := newFixture()
	f.slow.delay = 5 * time.Second
	f.broken.delay = 20 * time.Millisecond
	sources := []config.Source{
		source(t, "slow", "slow"),
		source(t, "broken", "broken"),
	}

	start := time.Now()
	result, err := NewOrchestrator(f.registry, Options{Project: project, Parallel: true, FailurePolicy: config.FailAbort}).
		Collect(context.Background(), sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source broken failed")
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, "wara9a", result.Data.Repository.Name)
	require.Len(t, result.Outcomes, 2)
	assert.ErrorIs(t, result.Outcomes[0].Err, context.Canceled)
}

func TestCollectParallelAbortReportsDeclaredOrder(t *testing.T) {
	testCases := []struct {
		name     string
		policy   config.FailurePolicy
		wantErr  string
		failures int
	}{
		{name: "abort", policy: config.FailAbort, wantErr: "source s0 failed", failures: 2},
		{name: "continue", policy: config.FailContinue, failures: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			registry := connector.NewRegistry(nil)
			registry.Register(&fakeConnector{
				typ:      "late",
				delay:    150 * time.Millisecond,
				stubborn: true,
				err:      errors.New("late failure"),
			})
			registry.Register(&fakeConnector{typ: "early", delay: 20 * time.Millisecond, err: errors.New("early failure")})

			sources := []config.Source{source(t, "late", "s0"), source(t, "early", "s1")}
			result, err := NewOrchestrator(registry, Options{Project: project, Parallel: true, FailurePolicy: tc.policy}).
				Collect(context.Background(), sources)

			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				assert.Contains(t, err.Error(), "late failure")
			}
			require.Len(t, result.Outcomes, 2)
			assert.Equal(t, "s0", result.Outcomes[0].SourceName)
			assert.Equal(t, "s1", result.Outcomes[1].SourceName)
			assert.Len(t, result.Failures(), tc.failures)
		})
	}
}

func TestCollectParallelAbortSkipsPending(t *testing.T) {
	f := newFixture()
	sources := []config.Source{
		source(t, "broken", "broken"),
		source(t, "ok", "queued"),
	}

	result, err := NewOrchestrator(f.registry, Options{
		Project:       project,
		Parallel:      true,
		MaxParallel:   1,
		FailurePolicy: config.FailAbort,
	}).Collect(context.Background(), sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source broken failed")

	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[1].Skipped)
	assert.ErrorIs(t, result.Outcomes[1].Err, ErrNotAttempted)
	assert.Zero(t, f.ok.calls.Load())
}

func TestCollectParallelDiscoveredTypes(t *testing.T) {
	registry := connector.NewRegistry(nil)
	var built atomic.Int32
	registry.RegisterFactory("example.com/connectors/gitlab", func() (connector.Connector, error) {
		built.Add(1)
		time.Sleep(100 * time.Millisecond)
		return &fakeConnector{typ: "gitlab"}, nil
	})

	sources := []config.Source{source(t, "gitlab", "a"), source(t, "gitlab", "b")}
	result, err := NewOrchestrator(registry, Options{Project: project, Parallel: true}).
		Collect(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded())
	assert.Empty(t, result.Failures())
	assert.Equal(t, "a", result.Data.Repository.Name)
	assert.Equal(t, int32(1), built.Load())
}

func TestCollectSourceTimeout(t *testing.T) {
	f := newFixture()
	sources := []config.Source{source(t, "slow", "slow"), source(t, "ok", "fast")}

	result, err := NewOrchestrator(f.registry, Options{Project: project, SourceTimeout: 20 * time.Millisecond}).
		Collect(context.Background(), sources)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.Outcomes[0].Success)
	assert.Contains(t, result.Outcomes[0].Err.Error(), "timed out")
	assert.Equal(t, "fast", result.Data.Repository.Name)
	assert.False(t, result.Cancelled)
}

func TestCollectCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	sources := []config.Source{source(t, "ok", "done"), source(t, "slow", "pending"), source(t, "ok", "skipped")}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := NewOrchestrator(f.registry, Options{Project: project, FailurePolicy: config.FailAbort}).
		Collect(ctx, sources)
	require.NoError(t, err, "cancellation is reported through the result")

	assert.True(t, result.Cancelled)
	require.Len(t, result.Outcomes, 3)
	assert.False(t, result.Outcomes[1].Skipped, "the in-flight source was attempted")
	assert.True(t, result.Outcomes[2].Skipped)
	assert.ErrorIs(t, result.Outcomes[2].Err, context.Canceled)
	assert.Equal(t, "done", result.Data.Repository.Name, "completed work is kept")
}

func TestCollectUnknownType(t *testing.T) {
	f := newFixture()

	result, err := NewOrchestrator(f.registry, Options{Project: project}).
		Collect(context.Background(), []config.Source{source(t, "gitlab", "gl")})
	require.NoError(t, err)

	require.Len(t, result.Failures(), 1)
	assert.True(t, errors.Is(result.Failures()[0].Err, connector.ErrNotFound))
	assert.Equal(t, "wara9a", result.Data.Repository.Name)
}

func TestFirstWinsMerge(t *testing.T) {
	a := &models.ProjectData{SourceType: models.SourceGitHub}
	b := &models.ProjectData{SourceType: models.SourceJira}

	merged, err := FirstWins{}.Merge([]*models.ProjectData{a, b})
	require.NoError(t, err)
	assert.Same(t, a, merged)

	merged, err = FirstWins{}.Merge(nil)
	require.NoError(t, err)
	assert.Nil(t, merged)
}

type failingMerger struct{}

func (failingMerger) Merge([]*models.ProjectData) (*models.ProjectData, error) {
	return nil, ErrMergeAmbiguity
}

func TestCollectMergeError(t *testing.T) {
	f := newFixture()

	_, err := NewOrchestrator(f.registry, Options{Project: project, Merger: failingMerger{}}).
		Collect(context.Background(), []config.Source{source(t, "ok", "a")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMergeAmbiguity))
}

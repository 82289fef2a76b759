package result_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subunit/model"
	v1 "github.com/perfgo/subunit/protocol/v1"
	"github.com/perfgo/subunit/result"
)

const exampleStream = `tags: global
test passed
success passed
test failed
tags: local
failure failed
test error
error error [
error details
]
test skipped
skip skipped
test todo
xfail todo
`

func run(t *testing.T, sink result.Sink, input string) {
	t.Helper()
	require.NoError(t, v1.NewServer(sink).Run(strings.NewReader(input)))
}

func started(rec *result.Recorder) []string {
	var ids []string
	for _, e := range rec.Events {
		if e.Kind == result.KindStartTest {
			ids = append(ids, e.TestID)
		}
	}
	return ids
}

func outcomes(rec *result.Recorder) map[string]model.Outcome {
	out := make(map[string]model.Outcome)
	for _, e := range rec.Events {
		if e.Kind == result.KindOutcome {
			out[e.Result.TestID] = e.Result.Outcome
		}
	}
	return out
}

func TestFilter_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		opts []result.FilterOption
		want []string
	}{
		{
			name: "success excluded by default",
			want: []string{"failed", "error", "skipped", "todo"},
		},
		{
			name: "include success",
			opts: []result.FilterOption{result.WithExclude(model.Success, false)},
			want: []string{"passed", "failed", "error", "skipped", "todo"},
		},
		{
			name: "exclude errors",
			opts: []result.FilterOption{result.WithExclude(model.Error, true)},
			want: []string{"failed", "skipped", "todo"},
		},
		{
			name: "exclude failures",
			opts: []result.FilterOption{result.WithExclude(model.Failure, true)},
			want: []string{"error", "skipped", "todo"},
		},
		{
			name: "exclude skips",
			opts: []result.FilterOption{result.WithExclude(model.Skip, true)},
			want: []string{"failed", "error", "todo"},
		},
		{
			name: "exclude xfail",
			opts: []result.FilterOption{result.WithExclude(model.XFail, true)},
			want: []string{"failed", "error", "skipped"},
		},
		{
			name: "predicate",
			opts: []result.FilterOption{
				result.WithExclude(model.Success, false),
				result.WithPredicate(func(r model.Result, _ model.TagSet) bool { return r.Outcome == model.Success }),
			},
			want: []string{"passed"},
		},
		{
			name: "tag predicate",
			opts: []result.FilterOption{
				result.WithExclude(model.Success, false),
				result.WithPredicate(result.TagPredicate([]string{"global"}, []string{"local"})),
			},
			want: []string{"passed", "error", "skipped", "todo"},
		},
		{
			name: "regexp predicate on id",
			opts: []result.FilterOption{
				result.WithPredicate(result.RegexpPredicate([]*regexp.Regexp{regexp.MustCompile("(?m)^(failed|skipped)$")}, nil)),
			},
			want: []string{"failed", "skipped"},
		},
		{
			name: "regexp predicate on details",
			opts: []result.FilterOption{
				result.WithPredicate(result.RegexpPredicate(nil, []*regexp.Regexp{regexp.MustCompile("error details")})),
			},
			want: []string{"failed", "skipped", "todo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &result.Recorder{}
			run(t, result.NewFilter(rec, tt.opts...), exampleStream)
			require.Equal(t, tt.want, started(rec))
		})
	}
}

func TestFilter_Fixup(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		opts []result.FilterOption
		want map[string]model.Outcome
	}{
		{
			name: "expected failure",
			ids:  []string{"failed"},
			want: map[string]model.Outcome{"failed": model.XFail, "error": model.Error, "skipped": model.Skip, "todo": model.XFail},
		},
		{
			name: "expected error",
			ids:  []string{"error"},
			want: map[string]model.Outcome{"failed": model.Failure, "error": model.XFail, "skipped": model.Skip, "todo": model.XFail},
		},
		{
			name: "unexpected success",
			ids:  []string{"passed"},
			opts: []result.FilterOption{result.WithExclude(model.Success, false)},
			want: map[string]model.Outcome{
				"passed": model.UxSuccess, "failed": model.Failure, "error": model.Error,
				"skipped": model.Skip, "todo": model.XFail,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &result.Recorder{}
			opts := append([]result.FilterOption{result.WithFixupExpectedFailures(tt.ids)}, tt.opts...)
			run(t, result.NewFilter(rec, opts...), exampleStream)
			require.Equal(t, tt.want, outcomes(rec))
		})
	}
}

func TestFilter_TagsTracked(t *testing.T) {
	rec := &result.Recorder{}
	f := result.NewFilter(rec,
		result.WithExclude(model.Success, false),
		result.WithPredicate(result.TagPredicate([]string{"a"}, nil)))
	run(t, f, "test: foo\ntags: a\nsuccessful: foo\ntest: bar\nsuccessful: bar\n")
	require.Equal(t, []string{
		"startTest foo",
		"tags [a] []",
		"addOutcome foo success []",
		"stopTest foo",
	}, rec.Strings())
}

func TestFilter_TimeOrdering(t *testing.T) {
	input := "time: 2000-01-01 00:00:00Z\n" +
		"test: foo\n" +
		"time: 2000-01-02 00:00:00Z\n" +
		"error: foo\n" +
		"time: 2000-01-03 00:00:00Z\n"
	rec := &result.Recorder{}
	run(t, result.NewFilter(rec), input)
	require.Equal(t, []string{
		"time 2000-01-01T00:00:00Z",
		"time 2000-01-02T00:00:00Z",
		"startTest foo",
		"addOutcome foo error []",
		"stopTest foo",
		"time 2000-01-03T00:00:00Z",
	}, rec.Strings())
}

func TestFilter_TimePassesThroughFilteredTests(t *testing.T) {
	input := "time: 2000-01-01 00:00:00Z\n" +
		"test: foo\n" +
		"time: 2000-01-02 00:00:00Z\n" +
		"success: foo\n" +
		"time: 2000-01-03 00:00:00Z\n"
	rec := &result.Recorder{}
	f := result.NewFilter(rec)
	require.NoError(t, f.StartTestRun())
	run(t, f, input)
	require.NoError(t, f.StopTestRun())
	require.Equal(t, []string{
		"startTestRun",
		"time 2000-01-01T00:00:00Z",
		"time 2000-01-03T00:00:00Z",
		"stopTestRun",
	}, rec.Strings())
}

func TestFilter_SkipPreserved(t *testing.T) {
	rec := &result.Recorder{}
	run(t, result.NewFilter(rec), "test: foo\nskip: foo\n")
	require.Equal(t, []string{"startTest foo", "addOutcome foo skip []", "stopTest foo"}, rec.Strings())
}

func TestFilter_Exists(t *testing.T) {
	rec := &result.Recorder{}
	f := result.NewFilter(rec, result.WithPredicate(result.TagPredicate(nil, []string{"slow"})))
	require.NoError(t, f.AddOutcome(model.Result{TestID: "a", Outcome: model.Exists}))
	require.NoError(t, f.AddOutcome(model.Result{TestID: "b", Outcome: model.Exists, Tags: []string{"slow"}}))
	require.Equal(t, []string{"addOutcome a exists []"}, rec.Strings())
}

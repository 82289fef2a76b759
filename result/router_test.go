package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subunit/model"
)

func TestMatchRouteCodePrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		consume bool
		code    string
		match   bool
		want    string
	}{
		{prefix: "0", code: "0", match: true, want: "0"},
		{prefix: "0", consume: true, code: "0", match: true, want: ""},
		{prefix: "0", consume: true, code: "0/1", match: true, want: "1"},
		{prefix: "0", consume: false, code: "0/1", match: true, want: "0/1"},
		{prefix: "0", code: "01", match: false, want: "01"},
		{prefix: "0", code: "", match: false, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+"->"+tt.code, func(t *testing.T) {
			ok, code := MatchRouteCodePrefix(tt.prefix, tt.consume)("id", tt.code)
			require.Equal(t, tt.match, ok)
			require.Equal(t, tt.want, code)
		})
	}
}

func TestRouter_RouteCode(t *testing.T) {
	fallback, worker := &Recorder{}, &Recorder{}
	r := NewRouter(fallback)
	r.AddRule(worker, MatchRouteCodePrefix("0", true))

	require.NoError(t, r.StartTestRun())
	require.NoError(t, r.StartTest("a"))
	require.NoError(t, r.Tags([]string{"x"}, nil))
	require.NoError(t, r.AddOutcome(model.Result{TestID: "a", Outcome: model.Success, RouteCode: "0/1"}))
	require.NoError(t, r.StopTest("a"))
	require.NoError(t, r.StartTest("b"))
	require.NoError(t, r.AddOutcome(model.Result{TestID: "b", Outcome: model.Failure}))
	require.NoError(t, r.StopTest("b"))
	require.NoError(t, r.StopTestRun())

	require.Equal(t, []string{
		"startTestRun",
		"startTest a",
		"tags [x] []",
		"addOutcome a success []",
		"stopTest a",
		"stopTestRun",
	}, worker.Strings())
	require.Equal(t, "1", worker.Events[3].Result.RouteCode)

	require.Equal(t, []string{
		"startTestRun",
		"startTest b",
		"addOutcome b failure []",
		"stopTest b",
		"stopTestRun",
	}, fallback.Strings())
}

func TestRouter_TestID(t *testing.T) {
	fallback, special := &Recorder{}, &Recorder{}
	r := NewRouter(fallback)
	r.AddRule(special, MatchTestID("slow"))
	// registering the same sink twice must not duplicate broadcasts
	r.AddRule(special, MatchTestID("slower"))

	require.NoError(t, r.Time(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, r.StartTest("slow"))
	require.NoError(t, r.StopTest("slow"))
	require.NoError(t, r.AddOutcome(model.Result{TestID: "slower", Outcome: model.Exists}))
	require.NoError(t, r.Progress(model.Progress{Kind: model.ProgressSet, Value: 3}))

	require.Equal(t, []string{
		"time 2000-01-01T00:00:00Z",
		"startTest slow",
		"stopTest slow",
		"addOutcome slower exists []",
	}, special.Strings())
	require.Equal(t, []string{
		"time 2000-01-01T00:00:00Z",
		"progress 3",
	}, fallback.Strings())
}

func TestRouter_Files(t *testing.T) {
	fallback, worker := &Recorder{}, &Recorder{}
	r := NewRouter(fallback)
	r.AddRule(worker, MatchRouteCodePrefix("0", true))

	require.NoError(t, r.Tags([]string{"g"}, nil))
	require.NoError(t, r.File(model.File{Name: "stdout", Data: []byte("x"), RouteCode: "0"}))
	require.NoError(t, r.File(model.File{Name: "stdout", Data: []byte("y")}))
	require.NoError(t, r.StartTest("a"))
	require.NoError(t, r.File(model.File{TestID: "a", Name: "log", Data: []byte("z"), RouteCode: "0"}))
	require.NoError(t, r.StopTest("a"))

	require.Equal(t, []string{
		"tags [g] []",
		`file stdout "x"`,
		"startTest a",
		`file log "z"`,
		"stopTest a",
	}, worker.Strings())
	require.Equal(t, "", worker.Events[1].File.RouteCode)
	require.Equal(t, []string{"tags [g] []", `file stdout "y"`}, fallback.Strings())
}

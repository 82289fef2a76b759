package timing

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"

	v1 "github.com/perfgo/subunit/protocol/v1"
)

const timedStream = `time: 2000-01-01 00:00:00Z
test: pkg.A/one
time: 2000-01-01 00:00:01Z
success: pkg.A/one
test: pkg.A/two
time: 2000-01-01 00:00:03Z
failure: pkg.A/two
test: pkg.A/one
time: 2000-01-01 00:00:04Z
success: pkg.A/one
`

func names(locs []*profile.Location) []string {
	var out []string
	for _, loc := range locs {
		out = append(out, loc.Line[0].Function.Name)
	}
	return out
}

func TestBuilder(t *testing.T) {
	b := New()
	require.NoError(t, v1.NewServer(b).Run(strings.NewReader(timedStream)))
	prof := b.Profile()

	require.Len(t, prof.SampleType, 2)
	require.Equal(t, "duration", prof.SampleType[0].Type)
	require.Equal(t, "tests", prof.SampleType[1].Type)

	require.Len(t, prof.Sample, 2)
	require.Equal(t, []string{"pkg.A/one", "pkg.A", "pkg"}, names(prof.Sample[0].Location))
	require.Equal(t, []int64{int64(2 * time.Second), 2}, prof.Sample[0].Value)
	require.Equal(t, []string{"success"}, prof.Sample[0].Label[OutcomeLabel])

	require.Equal(t, []string{"pkg.A/two", "pkg.A", "pkg"}, names(prof.Sample[1].Location))
	require.Equal(t, []int64{int64(2 * time.Second), 1}, prof.Sample[1].Value)
	require.Equal(t, []string{"failure"}, prof.Sample[1].Label[OutcomeLabel])

	require.Len(t, prof.Function, 4)
	require.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano(), prof.TimeNanos)
	require.Equal(t, int64(4*time.Second), prof.DurationNanos)
	require.NoError(t, prof.CheckValid())
}

func TestBuilder_Frames(t *testing.T) {
	tests := []struct {
		name string
		seps string
		id   string
		want []string
	}{
		{name: "dotted", seps: DefaultSeparators, id: "a.b.c", want: []string{"a", "a.b", "a.b.c"}},
		{name: "subtests", seps: "/", id: "pkg.Test/x/y", want: []string{"pkg.Test", "pkg.Test/x", "pkg.Test/x/y"}},
		{name: "repeated separator", seps: ".", id: "a..b", want: []string{"a", "a..b"}},
		{name: "leading separator", seps: ".", id: ".a", want: []string{".a"}},
		{name: "no separators", seps: "", id: "a.b", want: []string{"a.b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, New(WithSeparators(tt.seps)).frames(tt.id))
		})
	}
}

func TestBuilder_Write(t *testing.T) {
	b := New()
	require.NoError(t, v1.NewServer(b).Run(strings.NewReader("test: a\nsuccess: a\n")))

	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))

	prof, err := profile.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, prof.Sample, 1)
	require.Equal(t, []int64{0, 1}, prof.Sample[0].Value)
	require.Zero(t, prof.TimeNanos)
}

func TestBuilder_Empty(t *testing.T) {
	prof := New().Profile()
	require.Empty(t, prof.Sample)
	require.Empty(t, prof.Function)
}

package v2

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/protoerr"
	"github.com/perfgo/subunit/result"
)

func decode(t *testing.T, input []byte, opts ...Option) (*result.Recorder, error) {
	t.Helper()
	rec := &result.Recorder{}
	err := NewDecoder(bytes.NewReader(input), rec, opts...).Run()
	return rec, err
}

func concat(t *testing.T, parts ...string) []byte {
	t.Helper()
	var out []byte
	for _, part := range parts {
		if strings.HasPrefix(part, "b3") {
			out = append(out, mustHex(t, part)...)
		} else {
			out = append(out, part...)
		}
	}
	return out
}

func TestDecoder_Events(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		opts  []Option
		want  []string
	}{
		{
			name:  "inprogress then success",
			input: concat(t, inProgressVector, successVector),
			want: []string{
				"startTest test",
				"tags [foo quux] []",
				"tags [bar] []",
				"addOutcome test success []",
				"stopTest test",
			},
		},
		{
			name:  "timestamp",
			input: concat(t, timestampVector),
			want: []string{
				"time 2009-10-11T12:13:14.000015Z",
				"startTest foo",
				"addOutcome foo success []",
				"stopTest foo",
			},
		},
		{
			name:  "file content is attached to the outcome",
			input: concat(t, fileVector, routeCodeVector),
			want: []string{
				"startTest foo",
				"addOutcome foo failure [log]",
				"stopTest foo",
			},
		},
		{
			name:  "non subunit bytes",
			input: concat(t, "hello\n", inProgressVector, "bye"),
			want: []string{
				`file stdout "hello\n"`,
				"startTest test",
				"tags [foo quux] []",
				`file stdout "bye"`,
				"addOutcome test error [traceback]",
				"stopTest test",
			},
		},
		{
			name:  "non subunit name",
			input: []byte("hello\n"),
			opts:  []Option{WithNonSubunitName("out")},
			want:  []string{`file out "hello\n"`},
		},
		{
			name:  "test-less file",
			input: mustHex(t, "b320502e186170706c69636174696f6e2f6f637465742d73747265616d067374646f7574056a756e6b0a71560641"),
			want:  []string{`file stdout "junk\n"`},
		},
		{
			name:  "lost connection",
			input: concat(t, inProgressVector),
			want: []string{
				"startTest test",
				"tags [foo quux] []",
				"addOutcome test error [traceback]",
				"stopTest test",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := decode(t, tt.input, tt.opts...)
			require.NoError(t, err)
			require.Equal(t, tt.want, rec.Strings())
		})
	}
}

func TestDecoder_Results(t *testing.T) {
	rec, err := decode(t, concat(t, fileVector, routeCodeVector, inProgressVector))
	require.NoError(t, err)

	var results []model.Result
	for _, e := range rec.Events {
		if e.Kind == result.KindOutcome {
			results = append(results, e.Result)
		}
	}
	require.Equal(t, []model.Result{
		{
			TestID:    "foo",
			Outcome:   model.Failure,
			Details:   model.Details{"log": model.Text("hi")},
			RouteCode: "0",
		},
		{
			TestID:  "test",
			Outcome: model.Error,
			Details: model.Details{"traceback": model.Traceback("lost connection during test 'test'")},
		},
	}, results)
}

func TestDecoder_Exists(t *testing.T) {
	p := Packet{TestID: "foo", Status: StatusExists, Tags: []string{"slow"}}
	b, err := p.MarshalBinary()
	require.NoError(t, err)

	rec, err := decode(t, b)
	require.NoError(t, err)
	require.Equal(t, []string{"addOutcome foo exists []"}, rec.Strings())
	require.Equal(t, []string{"slow"}, rec.Events[0].Result.Tags)
}

func TestDecoder_ParserError(t *testing.T) {
	bad := "b329821704746573740203666f6f0471757578a6e1deed"
	rec, err := decode(t, concat(t, "junk\n", bad))
	require.ErrorIs(t, err, protoerr.ErrMalformedPacket)
	require.Equal(t, []string{
		`file stdout "junk\n"`,
		"startTest subunit.parser",
		"addOutcome subunit.parser failure [Packet data Parser Error]",
		"stopTest subunit.parser",
	}, rec.Strings())

	d := rec.Events[2].Result.Details
	require.Equal(t, mustHex(t, bad), d["Packet data"].Data)
	require.Equal(t, model.OctetStreamType, d["Packet data"].ContentType)
	require.Equal(t, model.UTF8TextType, d["Parser Error"].ContentType)
	require.Contains(t, string(d["Parser Error"].Data), "Bad checksum")
}

func TestDecoder_ParserErrorClosesOpenTests(t *testing.T) {
	rec, err := decode(t, concat(t, inProgressVector, "b329"))
	require.ErrorIs(t, err, protoerr.ErrMalformedPacket)
	require.Equal(t, []string{
		"startTest test",
		"tags [foo quux] []",
		"startTest subunit.parser",
		"addOutcome subunit.parser failure [Packet data Parser Error]",
		"stopTest subunit.parser",
		"addOutcome test error [traceback]",
		"stopTest test",
	}, rec.Strings())
}

func TestWriter_Vectors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.StartTestRun())
	require.NoError(t, w.Tags([]string{"foo", "quux"}, nil))
	require.NoError(t, w.StartTest("test"))
	require.NoError(t, w.AddOutcome(model.Result{TestID: "test", Outcome: model.Success, Tags: []string{"bar"}}))
	require.NoError(t, w.StopTest("test"))
	require.NoError(t, w.Progress(model.Progress{Kind: model.ProgressPush}))
	require.NoError(t, w.StopTestRun())
	require.Equal(t, inProgressVector+successVector, hex.EncodeToString(buf.Bytes()))

	buf.Reset()
	w = NewWriter(&buf)
	require.NoError(t, w.Time(time.Date(2009, 10, 11, 12, 13, 14, 15000, time.UTC)))
	require.NoError(t, w.AddOutcome(model.Result{TestID: "foo", Outcome: model.Success}))
	require.Equal(t, timestampVector, hex.EncodeToString(buf.Bytes()))

	buf.Reset()
	w = NewWriter(&buf)
	require.NoError(t, w.AddOutcome(model.Result{TestID: "foo", Outcome: model.Error, RouteCode: "0"}))
	require.Equal(t, routeCodeVector, hex.EncodeToString(buf.Bytes()))
}

func TestWriter_TestTagsDoNotLeak(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Tags([]string{"global"}, nil))
	require.NoError(t, w.StartTest("a"))
	require.NoError(t, w.Tags([]string{"local"}, []string{"global"}))
	require.NoError(t, w.AddOutcome(model.Result{TestID: "a", Outcome: model.Success}))
	require.NoError(t, w.StopTest("a"))
	require.NoError(t, w.StartTest("b"))
	require.NoError(t, w.AddOutcome(model.Result{TestID: "b", Outcome: model.Success}))
	require.NoError(t, w.StopTest("b"))

	r := NewReader(&buf)
	var tags [][]string
	for i := 0; i < 4; i++ {
		frame, err := r.Next()
		require.NoError(t, err)
		tags = append(tags, frame.Packet.Tags)
	}
	require.Equal(t, [][]string{{"global"}, {"local"}, {"global"}, {"global"}}, tags)
}

func TestWriter_SplitsFiles(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), FileChunkSize/16*2+1)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.AddOutcome(model.Result{
		TestID:  "big",
		Outcome: model.Failure,
		Details: model.Details{"log": {ContentType: model.OctetStreamType, Data: data}},
	}))

	r := NewReader(&buf)
	var sizes []int
	var eofs []bool
	for i := 0; i < 4; i++ {
		frame, err := r.Next()
		require.NoError(t, err)
		sizes = append(sizes, len(frame.Packet.FileContent))
		eofs = append(eofs, frame.Packet.EOF)
	}
	require.Equal(t, []int{FileChunkSize, FileChunkSize, 16, 0}, sizes)
	require.Equal(t, []bool{false, false, true, false}, eofs)
}

func TestDecoder_EmptyStream(t *testing.T) {
	rec, err := decode(t, nil)
	require.NoError(t, err)
	require.Empty(t, rec.Events)
}

func TestWriter_RoundTrip(t *testing.T) {
	when := time.Date(2024, 2, 3, 4, 5, 6, 789, time.UTC)
	results := []model.Result{
		{TestID: "pass", Outcome: model.Success},
		{TestID: "chatty", Outcome: model.Success, Details: model.Details{
			"stdout": {ContentType: model.UTF8TextType, Data: []byte("hello\n")},
		}},
		{TestID: "skipped", Outcome: model.Skip, Details: model.Details{"reason": model.Text("later")}},
		{TestID: "broken", Outcome: model.Failure, Details: model.Details{
			"log":       model.Text("line\n"),
			"traceback": model.Traceback("boom\n"),
		}},
		{TestID: "known", Outcome: model.XFail, RouteCode: "1/2"},
		{TestID: "lucky", Outcome: model.UxSuccess},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Time(when))
	for _, r := range results {
		require.NoError(t, w.StartTest(r.TestID))
		require.NoError(t, w.AddOutcome(r))
		require.NoError(t, w.StopTest(r.TestID))
	}
	require.NoError(t, w.File(model.File{Data: []byte("tail\n"), ContentType: model.OctetStreamType}))

	rec, err := decode(t, buf.Bytes())
	require.NoError(t, err)

	var got []model.Result
	for _, e := range rec.Events {
		if e.Kind == result.KindOutcome {
			got = append(got, e.Result)
		}
	}
	require.Equal(t, results, got)
	require.Equal(t, result.KindTime, rec.Events[0].Kind)
	require.True(t, when.Equal(rec.Events[0].Time))
	last := rec.Events[len(rec.Events)-1]
	require.Equal(t, `file stdout "tail\n"`, last.String())
}

func TestWriter_TimestampOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Time(time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC)))
	require.ErrorContains(t, w.StartTest("a"), "out of range")
	require.Zero(t, buf.Len())
}

func TestRewriteTags(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		gained []string
		lost   []string
		want   string
	}{
		{
			name:   "add and remove",
			input:  concat(t, inProgressVector),
			gained: []string{"bar"},
			lost:   []string{"foo"},
			want:   "b3298217047465737402036261720471757578cddcba0e",
		},
		{
			name:  "remove every tag",
			input: concat(t, inProgressVector),
			lost:  []string{"foo", "quux"},
			want:  "b329020d0474657374566394ac",
		},
		{
			name:  "non subunit bytes",
			input: []byte("junk\n"),
			want:  "b3211015067374646f7574056a756e6b0ae79fd246",
		},
		{
			name:  "non subunit bytes without newline",
			input: []byte("hi thar"),
			want:  "b3211017067374646f75740768692074686172cf2eab95",
		},
		{
			name:   "test-less packets untouched",
			input:  mustHex(t, "b320502e186170706c69636174696f6e2f6f637465742d73747265616d067374646f7574056a756e6b0a71560641"),
			gained: []string{"bar"},
			want:   "b320502e186170706c69636174696f6e2f6f637465742d73747265616d067374646f7574056a756e6b0a71560641",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, RewriteTags(bytes.NewReader(tt.input), &out, tt.gained, tt.lost))
			require.Equal(t, tt.want, hex.EncodeToString(out.Bytes()))
		})
	}

	err := RewriteTags(bytes.NewReader(mustHex(t, "b329")), &bytes.Buffer{}, nil, nil)
	require.ErrorIs(t, err, protoerr.ErrMalformedPacket)
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ContentType
		wantErr bool
	}{
		{
			name: "plain",
			in:   "text/plain",
			want: ContentType{Type: "text", Subtype: "plain"},
		},
		{
			name: "v1 parameters",
			in:   "text/plain;charset=utf8,language=python",
			want: ContentType{Type: "text", Subtype: "plain", Params: map[string]string{"charset": "utf8", "language": "python"}},
		},
		{
			name: "v2 parameters",
			in:   `text/x-traceback; charset="utf8"`,
			want: TracebackType,
		},
		{
			name: "quoted value with separators",
			in:   `text/plain;note="a,b;c=d",charset=utf8`,
			want: ContentType{Type: "text", Subtype: "plain", Params: map[string]string{"charset": "utf8", "note": "a,b;c=d"}},
		},
		{
			name: "escaped quote",
			in:   `text/plain; note="say \"hi\""`,
			want: ContentType{Type: "text", Subtype: "plain", Params: map[string]string{"note": `say "hi"`}},
		},
		{
			name:    "unterminated quote",
			in:      `text/plain;note="a,b`,
			wantErr: true,
		},
		{
			name:    "no slash",
			in:      "textplain",
			wantErr: true,
		},
		{
			name:    "two slashes",
			in:      "text/plain/extra",
			wantErr: true,
		},
		{
			name:    "parameter without value",
			in:      "text/plain;charset",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContentType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestContentTypeString(t *testing.T) {
	require.Equal(t, `text/x-traceback; charset="utf8"`, TracebackType.String())
	require.Equal(t, "text/x-traceback;charset=utf8", TracebackType.V1String())
	require.Equal(t, "text/plain", PlainTextType.V1String())

	ct := ContentType{Type: "text", Subtype: "plain", Params: map[string]string{"language": "python", "charset": "utf8"}}
	require.Equal(t, "text/plain;charset=utf8,language=python", ct.V1String())

	parsed, err := ParseContentType(ct.String())
	require.NoError(t, err)
	require.True(t, ct.Equal(parsed))
	require.True(t, PlainTextType.Equal(ContentType{Type: "text", Subtype: "plain", Params: map[string]string{}}))
	require.False(t, PlainTextType.Equal(UTF8TextType))
}

func TestContentTypeParamsSurviveRendering(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		wantV1 string
	}{
		{
			name:   "comma",
			params: map[string]string{"note": "a,b", "charset": "utf8"},
			wantV1: `text/plain;charset=utf8,note="a,b"`,
		},
		{
			name:   "semicolon and equals",
			params: map[string]string{"note": "x=1;y=2"},
			wantV1: `text/plain;note="x=1;y=2"`,
		},
		{
			name:   "quote and backslash",
			params: map[string]string{"note": `say "hi" \o/`},
			wantV1: `text/plain;note="say \"hi\" \\o/"`,
		},
		{
			name:   "empty value",
			params: map[string]string{"note": ""},
			wantV1: `text/plain;note=""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := ContentType{Type: "text", Subtype: "plain", Params: tt.params}
			require.Equal(t, tt.wantV1, ct.V1String())

			for _, rendered := range []string{ct.V1String(), ct.String()} {
				parsed, err := ParseContentType(rendered)
				require.NoError(t, err)
				require.Equal(t, ct, parsed)
			}
		})
	}
}

func TestOutcome(t *testing.T) {
	for _, o := range []Outcome{Exists, InProgress, Success, Failure, Error, Skip, XFail, UxSuccess} {
		parsed, err := ParseOutcome(o.String())
		require.NoError(t, err)
		require.Equal(t, o, parsed)
	}

	require.False(t, InProgress.Final())
	require.False(t, Exists.Final())
	require.True(t, XFail.Final())
	require.True(t, XFail.Successful())
	require.False(t, UxSuccess.Successful())

	data, err := json.Marshal(map[string]Outcome{"o": Skip})
	require.NoError(t, err)
	require.JSONEq(t, `{"o":"skip"}`, string(data))
}

func TestTags(t *testing.T) {
	gained, lost := ParseTagArgs([]string{"foo", "-bar", "", "quux"})
	require.Equal(t, []string{"foo", "quux"}, gained)
	require.Equal(t, []string{"bar"}, lost)

	s := NewTagSet("a", "bar")
	s.Apply(gained, lost)
	require.Equal(t, []string{"a", "foo", "quux"}, s.Sorted())
	require.Equal(t, []string{"foo", "quux"}, s.Minus(NewTagSet("a")))
	require.True(t, s.Intersects(NewTagSet("quux", "zzz")))
	require.False(t, s.Intersects(NewTagSet("zzz")))
}

func TestDetailsText(t *testing.T) {
	d := Details{
		"traceback": Traceback("boom\n"),
		"log":       Text("line"),
	}
	require.Equal(t, []string{"log", "traceback"}, d.Names())
	require.Equal(t, "log: line\ntraceback: boom\n\n", d.Text())
}

func TestProgressString(t *testing.T) {
	require.Equal(t, "23", Progress{Kind: ProgressSet, Value: 23}.String())
	require.Equal(t, "+4", Progress{Kind: ProgressCur, Value: 4}.String())
	require.Equal(t, "-2", Progress{Kind: ProgressCur, Value: -2}.String())
	require.Equal(t, "push", Progress{Kind: ProgressPush}.String())
	require.Equal(t, "pop", Progress{Kind: ProgressPop}.String())
}

package jsonout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		kind    Kind
		want    string
		wantErr error
	}{
		{
			name: "plain list",
			text: `{"Result": [{"date": "2024-10-10", "name": "國慶日"}]}`,
			kind: KindList,
			want: `{"Result": [{"date": "2024-10-10", "name": "國慶日"}]}`,
		},
		{
			name: "fenced",
			text: "```json\n{\"Result\": [{\"date\": \"2024-10-25\", \"name\": \"光復節\"}]}\n```",
			kind: KindList,
			want: `{"Result": [{"date": "2024-10-25", "name": "光復節"}]}`,
		},
		{
			name: "prose before fence",
			text: "Here you go:\n```json\n{\"Result\": {\"add\": true, \"reason\": \"不在清單\"}}\n```",
			kind: KindObject,
			want: `{"Result": {"add": true, "reason": "不在清單"}}`,
		},
		{
			name: "prose around object",
			text: `Sure! {"Result": {"score": 5498}} Hope that helps.`,
			kind: KindAny,
			want: `{"Result": {"score": 5498}}`,
		},
		{
			name:    "not json",
			text:    "I don't know.",
			kind:    KindList,
			wantErr: ErrJSONParse,
		},
		{
			name: "key order kept",
			text: `{"Result": {"reason": "r", "add": false}, "note": null}`,
			kind: KindObject,
			want: `{"Result": {"reason": "r", "add": false}, "note": null}`,
		},
		{
			name: "raw newline in string",
			text: "{\"Result\": {\"add\": false, \"reason\": \"a\nb\"}}",
			kind: KindObject,
			want: `{"Result": {"add": false, "reason": "a\nb"}}`,
		},
		{
			name: "raw tab in string",
			text: "{\"Result\": {\"reason\": \"a\tb\"}}",
			kind: KindObject,
			want: `{"Result": {"reason": "a\tb"}}`,
		},
		{
			name: "truncated after open list",
			text: `{"Result": [`,
			kind: KindList,
			want: `{"Result": []}`,
		},
		{
			name: "truncated inside object",
			text: `{"Result": [{"date": "2024-10-10", "name": "國慶日"}, {"date": "2024-10-25", "name": "光復`,
			kind: KindList,
			want: `{"Result": [{"date": "2024-10-10", "name": "國慶日"}, {"date": "2024-10-25", "name": "光復"}]}`,
		},
		{
			name: "truncated after comma",
			text: `{"Result": [{"date": "2024-10-10", "name": "國慶日"},`,
			kind: KindList,
			want: `{"Result": [{"date": "2024-10-10", "name": "國慶日"}]}`,
		},
		{
			name:    "unbalanced garbage",
			text:    `{not json}`,
			kind:    KindAny,
			wantErr: ErrJSONParse,
		},
		{
			name:    "missing result",
			text:    `{"result": []}`,
			kind:    KindList,
			wantErr: ErrMissingResult,
		},
		{
			name:    "wrong kind",
			text:    `{"Result": {"date": "2024-10-10"}}`,
			kind:    KindList,
			wantErr: ErrMissingResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.text, tt.kind)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalKeepsHTML(t *testing.T) {
	got, err := Marshal(map[string]any{"Result": "<b>&</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"Result":"<b>&</b>"}`, got)
}

func TestDumps(t *testing.T) {
	got, err := Dumps([]byte(`{"b":[1,2.50,{"x":"<&>"}],"a":"台灣","c":true}`))
	require.NoError(t, err)
	assert.Equal(t, `{"b": [1, 2.50, {"x": "<&>"}], "a": "台灣", "c": true}`, got)
}

func TestRepair(t *testing.T) {
	body, closers := repair(`{"a": ["x", {"b": "c\`)
	assert.Equal(t, `{"a": ["x", {"b": "c"`, body)
	assert.Equal(t, "}]}", closers)

	body, closers = repair("{\"a\": \"line1\nline2\"}")
	assert.Equal(t, `{"a": "line1\nline2"}`, body)
	assert.Empty(t, closers)
}

func TestToken(t *testing.T) {
	_, err := ParseResult("nope", KindList)
	token, ok := Token(err)
	assert.True(t, ok)
	assert.Equal(t, "json parse error", token)

	_, err = ParseResult(`{"x": 1}`, KindList)
	token, ok = Token(err)
	assert.True(t, ok)
	assert.Equal(t, "json not contain Result", token)

	_, ok = Token(errors.New("other"))
	assert.False(t, ok)
}

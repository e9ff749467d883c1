package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Document
	}{
		{"empty object", `{}`, Object{}},
		{"empty object with space", ` {  } `, Object{}},
		{"empty array", `[]`, Array{}},
		{"string", `"hello"`, Scalar("hello")},
		{"integer", `42`, Scalar("42")},
		{"negative float", `-3.25e+10`, Scalar("-3.25e+10")},
		{"true", `true`, Scalar("true")},
		{"false", `false`, Scalar("false")},
		{"null", `null`, Scalar("null")},
		{"object", `{"username":"alice","age":30}`, Object{"username": Scalar("alice"), "age": Scalar("30")}},
		{"nested", `{"a":{"b":[1,"two",{"c":null}]}}`, Object{
			"a": Object{"b": Array{Scalar("1"), Scalar("two"), Object{"c": Scalar("null")}}},
		}},
		{"whitespace everywhere", "\n{ \"k\" :\t[ 1 , 2 ] }\r\n", Object{"k": Array{Scalar("1"), Scalar("2")}}},
		{"duplicate key keeps last", `{"k":1,"k":2}`, Object{"k": Scalar("2")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseString(tt.input)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %s", String(got))
		})
	}
}

func TestParseEscapes(t *testing.T) {
	got, err := ParseString(`"q\" b\\ s\/ \b\f\n\r\t"`)
	require.NoError(t, err)
	assert.Equal(t, Scalar("q\" b\\ s/ \b\f\n\r\t"), got)

	got, err = ParseString(`"\x\q"`)
	require.NoError(t, err)
	assert.Equal(t, Scalar("xq"), got, "unknown escapes keep the escaped character")

	got, err = ParseString(`"Aé😀"`)
	require.NoError(t, err)
	assert.Equal(t, Scalar("Aé😀"), got)

	got, err = ParseString(`"\u12"`)
	require.NoError(t, err)
	assert.Equal(t, Scalar("u12"), got)
}

func TestParseUnicodeEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  Scalar
	}{
		{`"\u0001\u001f"`, "\x01\x1f"},
		{`"\u00e9"`, "é"},
		{`"\ud83d\ude00"`, "😀"},
		{`"\ud83dx"`, "\uFFFDx"},
		{`"\uzzzz"`, "uzzzz"},
	}
	for _, tt := range tests {
		got, err := ParseString(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	// control bytes leave the encoder as \u00XX and come back unchanged
	doc := Scalar("bell\x07 nul\x00")
	back, err := Parse(Encode(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestParseNumberQuirks(t *testing.T) {
	for _, input := range []string{"1.2.3", "--1", "1e+-5", "-"} {
		got, err := ParseString(input)
		require.NoError(t, err, input)
		assert.Equal(t, Scalar(input), got)
	}

	got, err := ParseString(`[1.2.3,4]`)
	require.NoError(t, err)
	assert.True(t, Equal(Array{Scalar("1.2.3"), Scalar("4")}, got))
}

func TestParseObjectID(t *testing.T) {
	const hex = "65a1f0c2e4b0a1b2c3d4e5f6"

	got, err := ParseString(`{"$oid":"` + hex + `"}`)
	require.NoError(t, err)
	id, ok := got.(ObjectID)
	require.True(t, ok, "want ObjectID, got %T", got)
	assert.Equal(t, hex, id.Hex())

	got, err = ParseString(`{"_id":{"$oid":"` + hex + `"},"day":"01/02/2025"}`)
	require.NoError(t, err)
	obj := got.(Object)
	assert.Equal(t, KindObjectID, obj["_id"].Kind())

	notIDs := []string{
		`{"$oid":"short"}`,
		`{"$oid":"zza1f0c2e4b0a1b2c3d4e5f6"}`,
		`{"$oid":["` + hex + `"]}`,
		`{"$oid":"` + hex + `","extra":1}`,
		`{"oid":"` + hex + `"}`,
	}
	for _, input := range notIDs {
		got, err := ParseString(input)
		require.NoError(t, err, input)
		assert.Equal(t, KindObject, got.Kind(), input)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		``,
		`   `,
		`{`,
		`{"a"`,
		`{"a":`,
		`{"a":1`,
		`{"a" 1}`,
		`{a:1}`,
		`{"a":1;"b":2}`,
		`[1 2]`,
		`[1,`,
		`"unterminated`,
		`"escape at end\`,
		`tru`,
		`@`,
		`{"a":1} trailing`,
		`{"a":1,}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			doc, err := ParseString(input)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, ErrSyntax))

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.GreaterOrEqual(t, se.Offset, 0)
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	deep := strings.Repeat("[", maxDepth+1) + strings.Repeat("]", maxDepth+1)
	_, err := ParseString(deep)
	require.ErrorIs(t, err, ErrSyntax)

	ok := strings.Repeat("[", maxDepth) + strings.Repeat("]", maxDepth)
	_, err = ParseString(ok)
	require.NoError(t, err)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(nil))
	assert.True(t, IsBlank([]byte(" \r\n\t")))
	assert.False(t, IsBlank([]byte(" {}")))
}

func BenchmarkParseObject(b *testing.B) {
	data := []byte(`{"username":"alice","password":"secret","tags":["a","b",{"n":1.5}],"_id":{"$oid":"65a1f0c2e4b0a1b2c3d4e5f6"}}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(data); err != nil {
			b.Fatal(err)
		}
	}
}

package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n[1,2]\n```", want: `[1,2]`},
		{name: "prose around", in: "Here you go:\n{\"a\": [\"x\"]}\nThanks!", want: `{"a": ["x"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestExtractRepairsTrailingComma(t *testing.T) {
	got, err := Extract(`{"categories": ["Market Risk", "Financial Risk",]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"categories": ["Market Risk", "Financial Risk"]}`, string(got))
}

func TestExtractEmpty(t *testing.T) {
	_, err := Extract("   ")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestDecode(t *testing.T) {
	var v struct {
		Industry string `json:"industry"`
	}
	require.NoError(t, Decode("```json\n{\"industry\": \"Fintech\"}\n```", &v))
	assert.Equal(t, "Fintech", v.Industry)
}

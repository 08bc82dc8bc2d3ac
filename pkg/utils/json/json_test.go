package json

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := sample{Name: "chunk", Count: 3, Tags: []string{"a", "b"}}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalInvalidInput(t *testing.T) {
	var out sample
	assert.Error(t, Unmarshal([]byte("{not json"), &out))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(sample{Name: "x"}))
	assert.Contains(t, buf.String(), `"name":"x"`)

	var out sample
	require.NoError(t, NewDecoder(strings.NewReader(`{"name":"y","count":2}`)).Decode(&out))
	assert.Equal(t, "y", out.Name)
	assert.Equal(t, 2, out.Count)
}

func TestIsUsingSonicMatchesArch(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}

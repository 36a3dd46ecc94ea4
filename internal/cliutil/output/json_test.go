package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestPrintJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, testStruct{Name: "test", Value: 42}))

	out := buf.String()
	assert.Contains(t, out, `"name": "test"`)
	assert.Contains(t, out, `"value": 42`)
}

func TestPrintJSONArray(t *testing.T) {
	data := []testStruct{{Name: "a", Value: 1}, {Name: "b", Value: 2}}

	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, data))

	out := buf.String()
	assert.Contains(t, out, `"name": "a"`)
	assert.Contains(t, out, `"name": "b"`)
}

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	jsonCodec, err := New("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, jsonCodec.Name())

	msgpackCodec, err := New("msgpack")
	require.NoError(t, err)
	assert.Equal(t, FormatMsgpack, msgpackCodec.Name())

	_, err = New("xml")
	assert.Error(t, err)
}

func TestCodecsAgreeOnStructure(t *testing.T) {
	t.Parallel()

	type frame struct {
		JobID     string `json:"job_id" msgpack:"job_id"`
		Operation string `json:"operation" msgpack:"operation"`
		Attempt   int    `json:"attempt" msgpack:"attempt"`
	}

	in := frame{JobID: "abc", Operation: "arith.divide", Attempt: 2}

	for _, format := range []string{FormatJSON, FormatMsgpack} {
		c, err := New(format)
		require.NoError(t, err)

		data, err := c.Marshal(in)
		require.NoError(t, err, format)

		var out frame
		require.NoError(t, c.Unmarshal(data, &out), format)
		assert.Equal(t, in, out, format)
	}
}

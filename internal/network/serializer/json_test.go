package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializers(t *testing.T) {
	for _, name := range []string{NameJSON, NameSonic} {
		t.Run(name, func(t *testing.T) {
			ser, err := New(name)
			require.NoError(t, err)
			testSerializer(t, ser)
		})
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("gob")
	assert.Error(t, err)

	ser, err := New("")
	require.NoError(t, err)
	assert.IsType(t, JSONSerializer{}, ser)
}

func testSerializer(t *testing.T, ser Serializer) {
	data, err := ser.Marshal(map[string]string{"kind": "pong"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"pong"}`, string(data))

	var out struct {
		Kind string `json:"kind"`
		Code uint16 `json:"code"`
	}
	require.NoError(t, ser.Unmarshal([]byte(`{"kind":"btn","code":304}`), &out))
	assert.Equal(t, "btn", out.Kind)
	assert.EqualValues(t, 304, out.Code)

	assert.Error(t, ser.Unmarshal([]byte(`{"kind":`), &out))

	var upper struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, ser.Unmarshal([]byte(`{"KIND":"ping"}`), &upper))
	assert.Empty(t, upper.Kind)
}

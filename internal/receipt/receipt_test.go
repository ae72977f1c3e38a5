package receipt

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgate/internal/types"
)

func TestStableID_IsNameBasedV5(t *testing.T) {
	id, err := StableID(map[string]any{"topic": "webhook.x", "n": 1})
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	want := uuid.NewSHA1(uuid.NameSpaceOID, []byte(`{"n":1,"topic":"webhook.x"}`)).String()
	assert.Equal(t, want, id)
}

func TestStableID_CanonicalizesRawJSON(t *testing.T) {
	a, err := FromJSON([]byte(`{"b": 2, "a": [1, 2]}`))
	require.NoError(t, err)
	b, err := FromJSON([]byte(`{"a":[1,2],"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := StableID(struct {
		Payload json.RawMessage `json:"payload"`
	}{Payload: json.RawMessage(`{ "z":1, "y":2 }`)})
	require.NoError(t, err)
	d, err := StableID(map[string]any{"payload": map[string]int{"y": 2, "z": 1}})
	require.NoError(t, err)
	assert.Equal(t, c, d)
}

func TestStableID_Errors(t *testing.T) {
	_, err := StableID(math.NaN())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindOther))

	_, err = FromJSON([]byte(`{not json`))
	assert.Error(t, err)

	assert.Panics(t, func() { MustStableID(make(chan int)) })
}

func TestStableID_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated calls agree", prop.ForAll(
		func(keys []string, values []string) bool {
			obj := make(map[string]string)
			for i := 0; i < len(keys) && i < len(values); i++ {
				obj[keys[i]] = values[i]
			}
			return MustStableID(obj) == MustStableID(obj)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("distinct values yield distinct ids", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			return MustStableID(map[string]string{"v": a}) != MustStableID(map[string]string{"v": b})
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

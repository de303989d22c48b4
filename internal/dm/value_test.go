package dm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAsInt(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		want    int64
		wantErr bool
	}{
		{"int", Int(42), 42, false},
		{"negative int", Int(-1), -1, false},
		{"decimal text", String("300"), 300, false},
		{"garbage text", String("12abc"), 0, true},
		{"empty", Value{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.AsInt()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueAsStringRejectsInt(t *testing.T) {
	_, err := Int(5).AsString()
	require.ErrorIs(t, err, ErrBadRequest)

	s, err := String("example.org").AsString()
	require.NoError(t, err)
	assert.Equal(t, "example.org", s)
}

func TestFromJSON(t *testing.T) {
	var body struct {
		Host  any `json:"host"`
		Count any `json:"count"`
		Frac  any `json:"frac"`
		Flag  any `json:"flag"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"host":"a.example","count":4,"frac":1.5,"flag":true}`), &body))

	v, err := FromJSON(body.Host)
	require.NoError(t, err)
	assert.Equal(t, String("a.example"), v)

	v, err = FromJSON(body.Count)
	require.NoError(t, err)
	assert.Equal(t, Int(4), v)

	_, err = FromJSON(body.Frac)
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = FromJSON(body.Flag)
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestValueMarshalJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Value{"a": String("x"), "b": Int(7)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":7}`, string(out))
}

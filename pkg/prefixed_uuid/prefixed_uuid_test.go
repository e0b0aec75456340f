package prefixed_uuid

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New("relay")
	assert.Equal(t, "relay", id.Prefix)
	assert.NotEqual(t, uuid.Nil, id.UUID)
	assert.False(t, id.IsZero())
	assert.False(t, New("relay").Equal(id))
}

func TestFromString(t *testing.T) {
	raw := uuid.MustParse("6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b")

	tests := []struct {
		name    string
		input   string
		want    PrefixedUUID
		wantErr bool
	}{
		{"simple prefix", "relay-" + raw.String(), FromUUID("relay", raw), false},
		{"dashed prefix", "wa-msg-" + raw.String(), FromUUID("wa-msg", raw), false},
		{"no prefix", raw.String(), PrefixedUUID{}, true},
		{"missing separator", "relay" + raw.String(), PrefixedUUID{}, true},
		{"bad uuid", "relay-6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3zzz", PrefixedUUID{}, true},
		{"empty", "", PrefixedUUID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestHasPrefix(t *testing.T) {
	id := New("relay").String()
	assert.True(t, HasPrefix(id, "relay"))
	assert.False(t, HasPrefix(id, "slack"))
	assert.False(t, HasPrefix("relay-nope", "relay"))
}

func TestJSON(t *testing.T) {
	type envelope struct {
		ID PrefixedUUID `json:"id"`
	}

	in := envelope{ID: New("relay")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+in.ID.String()+`"}`, string(data))

	var out envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.ID.Equal(out.ID))

	assert.Error(t, json.Unmarshal([]byte(`{"id":"garbage"}`), &out))

	require.NoError(t, json.Unmarshal([]byte(`{"id":""}`), &out))
	assert.True(t, out.ID.IsZero())
}

package channel

import (
	"testing"

	"github.com/flowgraph/workflow/internal/core/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastValue(t *testing.T) {
	ch := NewLastValue(value.Null())
	assert.True(t, ch.IsEmpty())
	assert.True(t, ch.Read().IsNull())
	assert.False(t, ch.Written())

	ch.Write(value.String("a"))
	ch.Write(value.String("b"))
	assert.True(t, ch.Read().Equal(value.String("b")))
	assert.False(t, ch.IsEmpty())
	assert.True(t, ch.Written())
	assert.Equal(t, PolicyLastValue, ch.Policy())
}

func TestLastValue_InitialAndClone(t *testing.T) {
	ch := NewLastValue(value.Number(7))
	assert.True(t, ch.Read().Equal(value.Number(7)))

	ch.Write(value.Number(8))
	clone := ch.Clone()
	assert.True(t, clone.Read().Equal(value.Number(7)), "clone starts from the initial value")
	assert.True(t, ch.Read().Equal(value.Number(8)))
}

func TestTopic(t *testing.T) {
	ch := NewTopic()
	assert.True(t, ch.IsEmpty())
	assert.True(t, ch.Read().IsNull())

	ch.Write(value.Number(1))
	ch.Write(value.Number(2))
	assert.True(t, ch.Read().Equal(value.Number(2)))
	assert.True(t, ch.Values().Equal(value.Array(value.Number(1), value.Number(2))))

	clone := ch.Clone().(*Topic)
	clone.Write(value.Number(3))
	assert.Equal(t, 2, ch.Values().Len())
	assert.Equal(t, 3, clone.Values().Len())
}

func TestEphemeral(t *testing.T) {
	ch := NewEphemeral(value.Null())
	ch.Write(value.Bool(true))
	assert.True(t, ch.Read().Equal(value.Bool(true)))

	var r Resetter = ch
	r.Reset()
	assert.True(t, ch.IsEmpty())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		initial value.Value
		want    Policy
		wantErr error
	}{
		{"default policy", "", value.String("x"), PolicyLastValue, nil},
		{"last value", PolicyLastValue, value.Null(), PolicyLastValue, nil},
		{"topic with seed", PolicyTopic, value.Number(1), PolicyTopic, nil},
		{"ephemeral", PolicyEphemeral, value.Null(), PolicyEphemeral, nil},
		{"unknown", Policy("queue"), value.Null(), "", ErrUnknownPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := New(tt.policy, tt.initial)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ch.Policy())
			assert.True(t, ch.Read().Equal(tt.initial))
		})
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "validate_output", OutputName("validate"))
	assert.True(t, IsOutputName("validate_output"))
	assert.False(t, IsOutputName("raw"))
}

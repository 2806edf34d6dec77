package channel

import (
	"github.com/flowgraph/workflow/internal/core/value"
	imetrics "github.com/flowgraph/workflow/internal/infrastructure/metrics"
)

// LastValue keeps only the most recent write.
type LastValue struct {
	initial value.Value
	current value.Value
	written bool
}

// NewLastValue creates a LastValue channel that reads as initial until written.
func NewLastValue(initial value.Value) *LastValue {
	return &LastValue{initial: initial, current: initial}
}

func (c *LastValue) Policy() Policy { return PolicyLastValue }

func (c *LastValue) Read() value.Value { return c.current }

func (c *LastValue) Write(v value.Value) {
	c.current = v
	c.written = true
	imetrics.ChannelWrite(string(PolicyLastValue))
}

func (c *LastValue) IsEmpty() bool { return c.current.IsNull() }

// Written reports whether any write happened since construction.
func (c *LastValue) Written() bool { return c.written }

// Clone returns a copy reset to the initial value.
func (c *LastValue) Clone() Channel { return NewLastValue(c.initial) }

// Topic accumulates values in write order.
type Topic struct {
	values []value.Value
}

func NewTopic() *Topic { return &Topic{} }

func (c *Topic) Policy() Policy { return PolicyTopic }

// Read returns the most recent element, or Null when nothing was written.
func (c *Topic) Read() value.Value {
	if len(c.values) == 0 {
		return value.Null()
	}
	return c.values[len(c.values)-1]
}

func (c *Topic) Write(v value.Value) {
	c.values = append(c.values, v)
	imetrics.ChannelWrite(string(PolicyTopic))
}

// Values returns every element written so far as an array.
func (c *Topic) Values() value.Value { return value.Array(c.values...) }

func (c *Topic) IsEmpty() bool { return len(c.values) == 0 }

func (c *Topic) Clone() Channel {
	cp := &Topic{values: make([]value.Value, len(c.values))}
	copy(cp.values, c.values)
	return cp
}

// Ephemeral holds a value until the next Reset.
type Ephemeral struct {
	current value.Value
}

func NewEphemeral(initial value.Value) *Ephemeral { return &Ephemeral{current: initial} }

func (c *Ephemeral) Policy() Policy { return PolicyEphemeral }

func (c *Ephemeral) Read() value.Value { return c.current }

func (c *Ephemeral) Write(v value.Value) {
	c.current = v
	imetrics.ChannelWrite(string(PolicyEphemeral))
}

func (c *Ephemeral) IsEmpty() bool { return c.current.IsNull() }

func (c *Ephemeral) Reset() { c.current = value.Null() }

func (c *Ephemeral) Clone() Channel { return &Ephemeral{current: c.current} }

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchIDGenerator_NeverRepeats(t *testing.T) {
	fixed := time.UnixMilli(1738560000000)
	g := NewBatchIDGenerator()
	g.now = func() time.Time { return fixed }

	assert.Equal(t, "1_S55_1738560000000", g.Next(1, "S55"))
	assert.Equal(t, "1_S55_1738560000001", g.Next(1, "S55"))
	assert.Equal(t, "2_S56_1738560000002", g.Next(2, "S56"))

	g.now = func() time.Time { return fixed.Add(time.Second) }
	assert.Equal(t, "1_S55_1738560001000", g.Next(1, "S55"))
}

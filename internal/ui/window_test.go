package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviewTick(t *testing.T) {
	p := &Preview{}
	start := time.Unix(0, 0)

	p.tick(start)
	assert.Zero(t, p.FPS())

	p.tick(start.Add(100 * time.Millisecond))
	assert.InDelta(t, 10.0, p.FPS(), 1e-9)

	p.tick(start.Add(150 * time.Millisecond))
	assert.InDelta(t, 11.0, p.FPS(), 1e-9)
}

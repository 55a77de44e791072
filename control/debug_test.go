package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	n := 0
	dp.RegisterProbe("b", func() any { n++; return n })
	dp.RegisterProbe("a", func() any { return "x" })
	assert.Equal(t, []string{"a", "b"}, dp.Names())

	st := dp.DumpState()
	assert.Equal(t, "x", st["a"])
	assert.Equal(t, 1, st["b"])

	dp.UnregisterProbe("b")
	assert.NotContains(t, dp.DumpState(), "b")
}

func TestDebugProbes_ReentrantProbe(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("self", func() any {
		dp.RegisterProbe("late", func() any { return 1 })
		return true
	})
	assert.NotPanics(t, func() { dp.DumpState() })
	assert.Contains(t, dp.Names(), "late")
}

func TestPlatformProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	st := dp.DumpState()
	assert.Greater(t, st["platform.cpus"], 0)
	assert.Greater(t, st["platform.goroutines"], 0)
}

func TestDebugProbes_Nil(t *testing.T) {
	var dp *DebugProbes
	dp.RegisterProbe("x", func() any { return nil })
	assert.Empty(t, dp.DumpState())
	assert.Nil(t, dp.Names())
}

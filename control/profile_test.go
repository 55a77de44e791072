package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileDepository_DisabledIgnoresSamples(t *testing.T) {
	d := NewProfileDepository()
	d.Accumulate("f.go", 1, "fn", time.Second, time.Second)
	assert.Empty(t, d.Snapshot())
}

func TestProfileDepository_Accumulate(t *testing.T) {
	d := NewProfileDepository()
	d.Start()
	d.Accumulate("a.go", 10, "a", 3*time.Millisecond, 1*time.Millisecond)
	d.Accumulate("a.go", 10, "a", 2*time.Millisecond, 2*time.Millisecond)
	d.Accumulate("b.go", 5, "b", 10*time.Millisecond, 10*time.Millisecond)

	snap := d.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].Func)
	assert.Equal(t, uint64(2), snap[1].Samples)
	assert.Equal(t, 5*time.Millisecond, snap[1].Total)
	assert.Equal(t, 3*time.Millisecond, snap[1].Exclusive)

	d.Stop()
	d.Accumulate("b.go", 5, "b", time.Hour, time.Hour)
	assert.Equal(t, 10*time.Millisecond, d.Snapshot()[0].Total)
}

func outer(p *Profiler) {
	defer p.Enter()()
	time.Sleep(2 * time.Millisecond)
	inner(p)
}

func inner(p *Profiler) {
	defer p.Enter()()
	time.Sleep(5 * time.Millisecond)
}

func TestProfiler_ExclusiveExcludesNested(t *testing.T) {
	d := NewProfileDepository()
	d.Start()
	outer(NewProfiler(d))

	snap := d.Snapshot()
	require.Len(t, snap, 2)
	byFunc := map[string]ProfileItem{}
	for _, it := range snap {
		byFunc[it.Func[len(it.Func)-5:]] = it
	}
	o, i := byFunc["outer"], byFunc["inner"]
	assert.GreaterOrEqual(t, o.Total, i.Total)
	assert.Equal(t, i.Total, i.Exclusive)
	assert.InDelta(t, float64(o.Total-i.Total), float64(o.Exclusive), float64(time.Microsecond))
}

func TestProfiler_NilSafe(t *testing.T) {
	var p *Profiler
	p.Enter()()
	NewProfiler(nil).Enter()()
}

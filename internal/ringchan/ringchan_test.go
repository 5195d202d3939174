package ringchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceSend_DropsOldest(t *testing.T) {
	rc := New[int](3)

	for i := 0; i < 10; i++ {
		rc.ForceSend(i)
	}

	require.Equal(t, 3, rc.Len())
	var got []int
	for {
		v, ok := rc.TryReceive()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{7, 8, 9}, got, "only the newest values MUST survive")
	assert.Equal(t, int64(10), rc.Written())
	assert.Equal(t, int64(7), rc.Overwritten())
}

func TestTrySend_FullBuffer(t *testing.T) {
	rc := New[string](1)

	assert.True(t, rc.TrySend("a"))
	assert.False(t, rc.TrySend("b"), "TrySend MUST NOT overwrite")

	v := <-rc.C()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, rc.Cap())
}

func TestNew_RejectsZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

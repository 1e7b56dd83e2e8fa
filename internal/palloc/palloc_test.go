package palloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAllocFreeRoundTrip exercises property 2: every byte written into an
// allocation is exactly the byte read back, for allocations of varying
// sizes drawn from the same page.
func TestAllocFreeRoundTrip(t *testing.T) {
	r := NewRegion(4096, []PageSpec{{MaxAllocSize: 4096, Sort: Ascending}}, false, false)

	sizes := []int{16, 32, 8, 64, 128}
	var blocks []*Block
	for i, n := range sizes {
		b, err := r.Alloc(n)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(b.Data), n)
		for j := range b.Data[:n] {
			b.Data[j] = byte(i + 1)
		}
		blocks = append(blocks, b)
	}
	for i, b := range blocks {
		for j := range b.Data[:sizes[i]] {
			require.Equal(t, byte(i+1), b.Data[j])
		}
	}
	for _, b := range blocks {
		require.NoError(t, r.Free(b))
	}
}

// TestCoalesceReclaimsFullPage exercises property 3: freeing all blocks of
// a page, in any order, always leaves the page able to satisfy an
// allocation as large as the original page (modulo descriptor overhead),
// proving physical coalescing fully reverses the splits.
func TestCoalesceReclaimsFullPage(t *testing.T) {
	r := NewRegion(1024, []PageSpec{{MaxAllocSize: 1024, Sort: Ascending}}, false, false)

	a, err := r.Alloc(100)
	require.NoError(t, err)
	b, err := r.Alloc(100)
	require.NoError(t, err)
	c, err := r.Alloc(100)
	require.NoError(t, err)

	// Free middle, then outer two: coalescing must merge all three spans
	// back into one free span regardless of free order.
	require.NoError(t, r.Free(b))
	require.NoError(t, r.Free(a))
	require.NoError(t, r.Free(c))

	big, err := r.Alloc(900)
	require.NoError(t, err)
	require.NotNil(t, big)
}

func TestDoubleFreeRejected(t *testing.T) {
	r := NewRegion(256, []PageSpec{{MaxAllocSize: 256}}, false, false)
	b, err := r.Alloc(32)
	require.NoError(t, err)
	require.NoError(t, r.Free(b))
	require.Error(t, r.Free(b))
}

func TestStrictRejectsOversizedPage(t *testing.T) {
	r := NewRegion(512, []PageSpec{
		{MaxAllocSize: 64, PageSize: 128, Sort: Ascending},
		{MaxAllocSize: 384, PageSize: 384, Sort: Descending},
	}, false, false)
	r.Strict = true

	_, err := r.Alloc(200)
	require.NoError(t, err)

	_, err = r.Alloc(1000)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestFreeFillPattern(t *testing.T) {
	r := NewRegion(256, []PageSpec{{MaxAllocSize: 256}}, false, true)
	b, err := r.Alloc(16)
	require.NoError(t, err)
	for i := range b.Data {
		b.Data[i] = 0x42
	}
	data := b.Data
	require.NoError(t, r.Free(b))
	for _, v := range data {
		require.Equal(t, byte(0xDE), v)
	}
}

func TestBoundaryGuardDetectsCorruption(t *testing.T) {
	r := NewRegion(256, []PageSpec{{MaxAllocSize: 256}}, true, false)
	b, err := r.Alloc(16)
	require.NoError(t, err)

	require.Panics(t, func() {
		b.Data[len(b.Data)-1] = 0 // fine, inside Data
		// Corrupt the trailing guard directly via the block's page arena.
		b.b.page.arena[b.b.off+b.b.size-1] = 0x00
		r.Free(b)
	})
}

package tid

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newFixed(micros int64, clock int64) *Generator {
	return &Generator{
		now: func() int64 { return micros },
		rnd: func(int64) int64 { return clock },
	}
}

func TestNextShape(t *testing.T) {
	assert := assert.New(t)

	g := New()
	tid := g.Next()

	assert.Len(tid, 13)
	for _, r := range tid {
		assert.True(strings.ContainsRune(alphabet, r), "unexpected character %q in %s", r, tid)
	}
}

func TestNextMonotonicUnderFrozenClock(t *testing.T) {
	assert := assert.New(t)

	g := newFixed(1700000000000000, 0)

	seen := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		seen = append(seen, g.Next())
	}

	sorted := append([]string(nil), seen...)
	sort.Strings(sorted)
	assert.Equal(sorted, seen, "TIDs must sort in generation order")

	unique := make(map[string]struct{}, len(seen))
	for _, tid := range seen {
		unique[tid] = struct{}{}
	}
	assert.Len(unique, len(seen), "frozen clock must not produce duplicates")
}

func TestNextSortsAcrossTime(t *testing.T) {
	assert := assert.New(t)

	earlier := newFixed(1700000000000000, 31)
	later := newFixed(1700000000500000, 0)

	assert.Less(earlier.Next(), later.Next())
}

func TestClockComponentPadded(t *testing.T) {
	assert := assert.New(t)

	g := newFixed(1700000000000000, 0)
	tid := g.Next()

	assert.Equal("22", tid[timestampLen:], "zero clock must pad with the alphabet's zero digit")
}

func TestEncodeRoundsTrip(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", encode(0))
	assert.Equal("3", encode(1))
	assert.Equal("32", encode(32))
	assert.Equal("2222", pad(encode(0), 4))
}

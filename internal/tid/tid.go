// Package tid generates AT Protocol timestamp identifiers (TIDs): 13-character
// base-32 tokens that sort by creation time. A TID is generated once per send
// attempt and reused across that attempt's retries, which is what makes the
// remote write idempotent. TIDs are not cryptographically secure and must not
// be used as security tokens.
package tid

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// alphabet is the sortable base-32 charset used by AT Protocol. It excludes
// visually ambiguous characters (0/o, 1/l, 8/b).
const alphabet = "234567abcdefghijklmnopqrstuvwxyz"

const (
	timestampLen = 11
	clockLen     = 2
)

// Generator produces monotonic, collision-resistant TIDs. The zero value is
// not usable; call New.
type Generator struct {
	mu   sync.Mutex
	last int64
	now  func() int64 // wall clock in microseconds
	rnd  func(n int64) int64
}

// New creates a Generator backed by the system clock. The timestamp is derived
// from wall-clock milliseconds scaled to microseconds, matching the precision
// the rest of the AT Protocol ecosystem produces client-side.
func New() *Generator {
	return &Generator{
		now: func() int64 { return time.Now().UnixMilli() * 1000 },
		rnd: rand.Int63n,
	}
}

// Next returns the next TID: an 11-character base-32 microsecond timestamp
// followed by a 2-character random clock component. The timestamp component is
// strictly increasing within this process even if the wall clock does not
// advance between calls.
func (g *Generator) Next() string {
	g.mu.Lock()
	timestamp := g.now()
	if timestamp <= g.last {
		timestamp = g.last + 1
	}
	g.last = timestamp
	g.mu.Unlock()

	clock := g.rnd(32 * 32)

	return pad(encode(timestamp), timestampLen) + pad(encode(clock), clockLen)
}

// encode renders i in the sortable base-32 alphabet, most significant digit
// first. encode(0) is the empty string; padding supplies the leading digits.
func encode(i int64) string {
	var b strings.Builder
	for i > 0 {
		b.WriteByte(alphabet[i%32])
		i /= 32
	}
	s := []byte(b.String())
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
	return string(s)
}

// pad left-pads s to length n with the alphabet's zero digit.
func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat(string(alphabet[0]), n-len(s)) + s
}

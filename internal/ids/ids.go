package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	refPrefix    = "TN-ENQ-"
	refLength    = 6
	refAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingBase = 10000
	trackingSpan = 90000
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RefNumber returns an enrollment reference such as TN-ENQ-7K2Q9A.
func RefNumber() string {
	buf := make([]byte, refLength)
	for i := range buf {
		buf[i] = refAlphabet[randInt(len(refAlphabet))]
	}
	return refPrefix + string(buf)
}

// TrackingID returns a grievance tracking id for the year of now: GRV-TN-2026-48213.
func TrackingID(now time.Time) string {
	return fmt.Sprintf("GRV-TN-%d-%d", now.Year(), trackingBase+randInt(trackingSpan))
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		entropyMu.Lock()
		defer entropyMu.Unlock()
		return mathrand.Intn(n)
	}
	return int(v.Int64())
}

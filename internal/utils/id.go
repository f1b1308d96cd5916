package utils

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu   sync.Mutex
	idMono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	idMono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewID returns a time-sortable identifier stamped with the current time.
func NewID() string {
	return NewIDAt(time.Now())
}

// NewIDAt returns a time-sortable identifier stamped with ts, so ids of replayed
// trades sort by bar time rather than wall clock.
func NewIDAt(ts time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	if ts.Before(time.Unix(0, 0)) {
		ts = time.Unix(0, 0)
	}
	id, err := ulid.New(ulid.Timestamp(ts.UTC()), idMono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

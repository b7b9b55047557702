package history

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var batchEntropy = struct {
	sync.Mutex
	r *rand.Rand
}{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

// NewBatchID returns a fresh identifier for a replay batch frame. ULIDs are
// time-ordered, which makes interleaved batches easy to read in logs.
func NewBatchID() string {
	batchEntropy.Lock()
	defer batchEntropy.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), batchEntropy.r).String()
}

package domain

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// newRandomID is swapped in tests to simulate an unavailable random source.
var newRandomID = uuid.NewRandom

// NewID returns a random UUID. If the system random source fails it falls
// back to "<unix millis>_<random hex>", which is still unique within a
// collection with overwhelming probability.
func NewID() string {
	id, err := newRandomID()
	if err != nil {
		return fmt.Sprintf("%d_%x", clock.Now().UnixMilli(), rand.Uint64())
	}
	return id.String()
}

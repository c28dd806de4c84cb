package testutil

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
)

var (
	// ErrInvalidRange is returned when a value range is empty or inverted.
	ErrInvalidRange = errors.New("invalid value range")
	// ErrInvalidSkew is returned for a Zipf exponent not greater than 1.
	ErrInvalidSkew = errors.New("zipf skew must be greater than 1")
)

// RangeError reports an inverted or empty [Min, Max) range.
type RangeError struct {
	Min uint32
	Max uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range max %d must be greater than range min %d", e.Max, e.Min)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// ValidateRange checks that [minVal, maxVal) is non-empty.
func ValidateRange(minVal, maxVal uint32) error {
	if maxVal <= minVal {
		return &RangeError{Min: minVal, Max: maxVal}
	}
	return nil
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Uint32Values returns n values drawn uniformly from [minVal, maxVal).
// Duplicates are possible, as with any sampling with replacement.
func (r *RNG) Uint32Values(n int, minVal, maxVal uint32) ([]uint32, error) {
	if err := ValidateRange(minVal, maxVal); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	span := int64(maxVal - minVal)
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = minVal + uint32(r.rand.Int63n(span))
	}
	return vals, nil
}

// ZipfValues returns n values in [minVal, maxVal) where small offsets from
// minVal are far more likely than large ones. Skewed sets overlap heavily,
// which exercises dense bitmap containers. s must be greater than 1.
func (r *RNG) ZipfValues(n int, minVal, maxVal uint32, s float64) ([]uint32, error) {
	if err := ValidateRange(minVal, maxVal); err != nil {
		return nil, err
	}
	if !(s > 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSkew, s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	z := rand.NewZipf(r.rand, s, 1, uint64(maxVal-minVal-1))
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = minVal + uint32(z.Uint64())
	}
	return vals, nil
}

// Strings renders each value in decimal. It is the fixed string↔integer
// mapping used to populate the same logical set in both representations.
func Strings(vals []uint32) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatUint(uint64(v), 10)
	}
	return out
}

// SetFixture holds named sets in integer form.
type SetFixture map[string][]uint32

// RandomSets draws one set of size values from [minVal, maxVal) per name.
func (r *RNG) RandomSets(names []string, size int, minVal, maxVal uint32) (SetFixture, error) {
	fixture := make(SetFixture, len(names))
	for _, name := range names {
		vals, err := r.Uint32Values(size, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		fixture[name] = vals
	}
	return fixture, nil
}

// ZipfSets draws one skewed set of size values from [minVal, maxVal) per
// name. See ZipfValues.
func (r *RNG) ZipfSets(names []string, size int, minVal, maxVal uint32, s float64) (SetFixture, error) {
	fixture := make(SetFixture, len(names))
	for _, name := range names {
		vals, err := r.ZipfValues(size, minVal, maxVal, s)
		if err != nil {
			return nil, err
		}
		fixture[name] = vals
	}
	return fixture, nil
}

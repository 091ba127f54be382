package breaker

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

type state uint8

const (
	closed state = iota + 1
	open
	halfOpen
)

var ErrOpen = errors.New("circuit breaker is open")

// Breaker guards calls to a downstream collaborator. It tracks the
// failure rate over a sliding window of recent calls; when the rate
// crosses the threshold the breaker opens and fails fast until the
// cooldown elapses, then lets probe calls through until enough of them
// succeed in a row.
type Breaker interface {
	Call(fn func() error) error
	Reset()
}

type breaker struct {
	mu sync.Mutex

	state       state
	window      []bool
	pos         int
	threshold   float64
	cooldown    time.Duration
	openedAt    time.Time
	probeQuota  int
	probePassed int
}

func New(windowSize int, cooldown time.Duration, threshold float64, probeQuota int) Breaker {
	return &breaker{
		state:      closed,
		window:     make([]bool, windowSize),
		threshold:  threshold,
		cooldown:   cooldown,
		probeQuota: probeQuota,
	}
}

func (b *breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.state == open {
		if time.Since(b.openedAt) <= b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = halfOpen
		b.probePassed = 0
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.window[b.pos] = err != nil
	b.pos = (b.pos + 1) % len(b.window)

	if b.state == halfOpen {
		if err != nil {
			b.state = open
			b.openedAt = time.Now()
			b.probePassed = 0
		} else if b.probePassed++; b.probePassed > b.probeQuota {
			b.reset()
		}
		return err
	}

	fails := 0
	for _, failed := range b.window {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(len(b.window)) >= b.threshold {
		b.state = open
		b.openedAt = time.Now()
	}
	return err
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *breaker) reset() {
	for i := range b.window {
		b.window[i] = false
	}
	b.pos = 0
	b.probePassed = 0
	b.state = closed
}

package adminsync

import (
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReconnectPolicy computes reconnect delays as min(Cap, Base^attempt) in Units.
// Attempts are counted from 1.
type ReconnectPolicy struct {
	Base float64
	Cap  time.Duration
	// Unit is the duration of one exponent step; zero means one second
	Unit time.Duration
}

// NewReconnectPolicy creates a policy measured in seconds
func NewReconnectPolicy(base float64, maxDelay time.Duration) (ReconnectPolicy, error) {
	p := ReconnectPolicy{Base: base, Cap: maxDelay, Unit: time.Second}
	if err := p.Validate(); err != nil {
		return ReconnectPolicy{}, err
	}
	return p, nil
}

// Validate checks the policy
func (p ReconnectPolicy) Validate() error {
	if p.Base <= 1 {
		return fmt.Errorf("%w: backoff base must be greater than 1, got %v", ErrInvalidConfig, p.Base)
	}
	if p.Cap < p.first() {
		return fmt.Errorf("%w: backoff cap %s is below the first delay %s", ErrInvalidConfig, p.Cap, p.first())
	}
	return nil
}

// Delay returns the delay before reconnect attempt n
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := math.Pow(p.Base, float64(attempt)) * float64(p.unit())
	if d >= float64(p.Cap) || math.IsInf(d, 1) {
		return p.Cap
	}
	return time.Duration(d)
}

// NewBackOff returns a stateful backoff yielding Delay(1), Delay(2), ... and
// never giving up. Reset restarts the sequence at Delay(1).
func (p ReconnectPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(p.first(), p.Cap)
	b.Multiplier = p.Base
	b.RandomizationFactor = 0
	b.MaxInterval = p.Cap
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// first is the uncapped delay before attempt 1
func (p ReconnectPolicy) first() time.Duration {
	return time.Duration(p.Base * float64(p.unit()))
}

func (p ReconnectPolicy) unit() time.Duration {
	if p.Unit <= 0 {
		return time.Second
	}
	return p.Unit
}

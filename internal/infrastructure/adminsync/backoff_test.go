package adminsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicy_Delay(t *testing.T) {
	p, err := NewReconnectPolicy(2, 60*time.Second)
	require.NoError(t, err)

	var got []time.Duration
	for attempt := 1; attempt <= 6; attempt++ {
		got = append(got, p.Delay(attempt))
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second}
	assert.Equal(t, want, got)
	assert.Equal(t, 60*time.Second, p.Delay(100))
	assert.Equal(t, 2*time.Second, p.Delay(0))
}

func TestReconnectPolicy_BackOffMatchesDelay(t *testing.T) {
	p, err := NewReconnectPolicy(2, 60*time.Second)
	require.NoError(t, err)
	bo := p.NewBackOff()

	for attempt := 1; attempt <= 8; attempt++ {
		assert.Equal(t, p.Delay(attempt), bo.NextBackOff(), "attempt %d", attempt)
	}

	bo.Reset()
	assert.Equal(t, 2*time.Second, bo.NextBackOff())
}

func TestReconnectPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		policy ReconnectPolicy
		ok     bool
	}{
		{"defaults", ReconnectPolicy{Base: 2, Cap: time.Minute}, true},
		{"millisecond units", ReconnectPolicy{Base: 1.5, Cap: 10 * time.Millisecond, Unit: time.Millisecond}, true},
		{"base of one", ReconnectPolicy{Base: 1, Cap: time.Minute}, false},
		{"cap below one unit", ReconnectPolicy{Base: 2, Cap: 500 * time.Millisecond}, false},
		{"cap below the first delay", ReconnectPolicy{Base: 3, Cap: 2 * time.Second}, false},
		{"cap equal to the first delay", ReconnectPolicy{Base: 3, Cap: 3 * time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestReconnectPolicy_BackOffNeverExceedsCap(t *testing.T) {
	_, err := NewReconnectPolicy(3, 2*time.Second)
	require.ErrorIs(t, err, ErrInvalidConfig)

	// unvalidated literal: the stateful backoff still honours the cap
	p := ReconnectPolicy{Base: 3, Cap: 2 * time.Second}
	bo := p.NewBackOff()
	for attempt := 1; attempt <= 4; attempt++ {
		assert.Equal(t, 2*time.Second, bo.NextBackOff(), "attempt %d", attempt)
		assert.Equal(t, p.Delay(attempt), 2*time.Second)
	}
}

// Package ratelimit enforces a minimum spacing between accepted INPUT
// frames from the same device.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultInterval sits just under the agent's two-minute send cadence.
const DefaultInterval = 110 * time.Second

// Policy decides when an INPUT consumes its device's slot.
type Policy int

const (
	// ChargeBeforeRegistration records the slot as soon as the interval is
	// satisfied, so an unregistered device is throttled too.
	ChargeBeforeRegistration Policy = iota
	// ChargeAfterRegistration records the slot only for registered devices.
	ChargeAfterRegistration
)

func (p Policy) String() string {
	if p == ChargeAfterRegistration {
		return "charge-after-registration"
	}
	return "charge-before-registration"
}

// Ledger maps device id to the Unix second of its last accepted INPUT.
// It lives only in memory and is never pruned.
type Ledger struct {
	mu       sync.Mutex
	interval int64
	policy   Policy
	last     map[string]int64
}

// New creates an empty ledger. A zero interval disables throttling.
func New(interval time.Duration, policy Policy) *Ledger {
	return &Ledger{
		interval: int64(interval / time.Second),
		policy:   policy,
		last:     make(map[string]int64),
	}
}

// Policy returns the ledger's charge policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Decision is the outcome of Admit.
type Decision int

const (
	// Throttled means the device sent too soon; drop silently.
	Throttled Decision = iota
	// Unregistered means the interval was satisfied but the device is unknown.
	Unregistered
	// Accepted means the INPUT should be stored.
	Accepted
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Unregistered:
		return "unregistered"
	}
	return "throttled"
}

// Admit checks and updates the ledger for one INPUT at time now. The check,
// the registration lookup and the ledger write happen under one lock so two
// concurrent frames for the same device cannot both pass.
func (l *Ledger) Admit(deviceID string, now int64, registered func(string) bool) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now-l.last[deviceID] < l.interval {
		return Throttled
	}

	if l.policy == ChargeBeforeRegistration {
		l.last[deviceID] = now
	}
	if !registered(deviceID) {
		return Unregistered
	}
	l.last[deviceID] = now
	return Accepted
}

// Last returns the recorded time for deviceID and whether one exists.
func (l *Ledger) Last(deviceID string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.last[deviceID]
	return t, ok
}

// Len returns the number of tracked devices.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}

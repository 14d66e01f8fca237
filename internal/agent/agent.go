package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rileyhilliard/fleetwatch/internal/client"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// Identity supplies the client config before each send, so config-set
// changes take effect without restarting the loop.
type Identity func() (*config.ClientConfig, error)

// Sender delivers one sample. *client.Client satisfies it through SenderFor.
type Sender func(ctx context.Context, serverAddr string, s store.Sample) (string, error)

// SenderFor returns a Sender that dials with timeout.
func SenderFor(timeout time.Duration) Sender {
	return func(ctx context.Context, addr string, s store.Sample) (string, error) {
		return client.New(addr, timeout).SendSample(ctx, s)
	}
}

// Agent runs the sample-and-send loop.
type Agent struct {
	sampler  *Sampler
	identity Identity
	send     Sender
	interval time.Duration
	log      logger.Logger
	now      func() time.Time
}

// New builds an agent. interval is the send cadence.
func New(sampler *Sampler, identity Identity, send Sender, interval time.Duration, log logger.Logger) *Agent {
	if log == nil {
		log = logger.Noop()
	}
	return &Agent{
		sampler:  sampler,
		identity: identity,
		send:     send,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run sends immediately and then every interval until ctx is done.
// Failed sends are logged and retried on the next tick.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if err := a.Tick(ctx); err != nil {
			a.log.Warn("%v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one sample-and-send cycle.
func (a *Agent) Tick(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	if !id.Registered() {
		return errors.New("device is not set up; run 'fleetwatch setup' first")
	}

	r, err := a.sampler.Next(ctx)
	if err != nil {
		return err
	}

	sample := store.Sample{
		DeviceID:   id.DeviceID,
		DeviceName: id.DeviceName,
		RAMUsed:    r.RAMUsed,
		RAMTotal:   r.RAMTotal,
		CPUUsage:   r.CPUUsage,
		Processes:  r.Processes,
		NetworkIn:  int64(r.NetworkIn),
		NetworkOut: int64(r.NetworkOut),
		Time:       a.now().Unix(),
	}

	resp, err := a.send(ctx, id.ServerAddr, sample)
	if errors.Is(err, client.ErrNoResponse) {
		a.log.Debug("sample dropped by server (too soon or not registered)")
		return nil
	}
	if err != nil {
		return err
	}
	a.log.Debug("server: %s", resp)
	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/protocol"
	"github.com/rileyhilliard/fleetwatch/internal/ratelimit"
	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// Response bodies written back to clients.
const (
	RespInserted     = "Data inserted"
	RespInsertFailed = "Failed to insert data"
	RespDenied       = "You're not allowed to do that."
	RespNoDevices    = "No devices found"
	RespReloaded     = "Server config reloaded"
	RespReloadFailed = "Failed to reload server config"
	RespStopping     = "Server stopping"
	RespSetupFailed  = "Failed to register device"
	RespRenameFailed = "Failed to rename device"
	RespRemoveFailed = "Failed to remove device"
	RespListFailed   = "Failed to list devices"
)

// maxSetupAttempts bounds id generation when candidates keep colliding.
const maxSetupAttempts = 16

// Result is what a handler decided to do with a request.
type Result struct {
	Body    string
	Respond bool
	// Stop asks the server to shut down after responding.
	Stop bool
}

func reply(body string) Result { return Result{Body: body, Respond: true} }

var drop = Result{}

// Dispatch routes a decoded frame to its handler. peer may be nil for
// in-process callers, which are then treated as remote.
func (s *Server) Dispatch(ctx context.Context, f protocol.Frame, peer net.Addr) Result {
	if f.Command.AdminOnly() && !s.authorized(f.Payload, f.Command, peer) {
		return reply(RespDenied)
	}

	switch f.Command {
	case protocol.Input:
		return s.handleInput(ctx, f.Payload, peer)
	case protocol.Rename:
		return s.handleRename(ctx, f.Payload, peer)
	case protocol.AdminRename:
		return s.handleAdminRename(ctx, f.Payload, peer)
	case protocol.Setup:
		return s.handleSetup(ctx)
	case protocol.Remove:
		return s.handleRemove(ctx, f.Payload, peer)
	case protocol.List:
		return s.handleList(ctx)
	case protocol.UpdateServer:
		return s.handleUpdateServer()
	case protocol.Exit:
		return s.handleExit(peer)
	}

	s.log.Warn("command not recognized from %s", peer)
	return drop
}

// authorized checks the presented digest. A missing or malformed deviceID
// is simply not an admin.
func (s *Server) authorized(p protocol.Payload, cmd protocol.Command, peer net.Addr) bool {
	presented, err := p.String(protocol.KeyDeviceID)
	if err == nil && s.registry.IsAdmin(presented) {
		return true
	}
	s.metrics.AuthDenied.Inc()
	s.log.Warn("%s from %s denied: not an admin", cmd, peer)
	return false
}

func (s *Server) fieldError(cmd protocol.Command, peer net.Addr, err error) Result {
	s.metrics.DecodeErrors.Inc()
	s.log.Warn("dropping %s from %s: %v", cmd, peer, err)
	return drop
}

func (s *Server) handleInput(ctx context.Context, p protocol.Payload, peer net.Addr) Result {
	id, err := p.String(protocol.KeyDeviceID)
	if err != nil {
		return s.fieldError(protocol.Input, peer, err)
	}

	now := s.opts.Clock().Unix()
	switch s.ledger.Admit(id, now, s.registry.IsRegistered) {
	case ratelimit.Throttled:
		s.metrics.RateLimited.Inc()
		s.log.Debug("%s sent data too soon", id)
		return drop
	case ratelimit.Unregistered:
		s.log.Info("%s tried to send data but is not registered", id)
		return drop
	}

	sample, err := sampleFromPayload(p, id, now)
	if err != nil {
		s.log.Warn("bad INPUT from %s: %v", id, err)
		return reply(RespInsertFailed)
	}
	if err := s.store.InsertSample(ctx, sample); err != nil {
		s.log.Error("insert for %s failed: %v", id, err)
		return reply(RespInsertFailed)
	}
	s.metrics.SamplesInserted.Inc()
	return reply(RespInserted)
}

// sampleFromPayload builds a row, stamping it with the server's clock.
// deviceName and processes may be absent.
func sampleFromPayload(p protocol.Payload, id string, now int64) (store.Sample, error) {
	smp := store.Sample{DeviceID: id, Time: now}

	if name, err := p.String(protocol.KeyDeviceName); err == nil {
		smp.DeviceName = name
	} else if !errors.Is(err, protocol.ErrMissingField) {
		return smp, err
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{protocol.KeyRAMUsed, &smp.RAMUsed},
		{protocol.KeyRAMTotal, &smp.RAMTotal},
		{protocol.KeyNetworkIn, &smp.NetworkIn},
		{protocol.KeyNetworkOut, &smp.NetworkOut},
	}
	for _, f := range ints {
		v, err := p.Int(f.key)
		if err != nil {
			return smp, err
		}
		*f.dst = v
	}

	cpu, err := p.Float(protocol.KeyCPUUsage)
	if err != nil {
		return smp, err
	}
	smp.CPUUsage = cpu

	procs, err := p.OptionalInt(protocol.KeyProcesses)
	if err != nil {
		return smp, err
	}
	smp.Processes = procs
	return smp, nil
}

func (s *Server) handleRename(ctx context.Context, p protocol.Payload, peer net.Addr) Result {
	id, err := p.String(protocol.KeyDeviceID)
	if err != nil {
		return s.fieldError(protocol.Rename, peer, err)
	}
	name, err := p.String(protocol.KeyDeviceName)
	if err != nil {
		return s.fieldError(protocol.Rename, peer, err)
	}
	return reply(s.rename(ctx, id, name))
}

// handleAdminRename renames another device; the target replaces the
// caller's own id.
func (s *Server) handleAdminRename(ctx context.Context, p protocol.Payload, peer net.Addr) Result {
	target, err := p.String(protocol.KeyRenamedDeviceID)
	if err != nil {
		return s.fieldError(protocol.AdminRename, peer, err)
	}
	name, err := p.String(protocol.KeyDeviceName)
	if err != nil {
		return s.fieldError(protocol.AdminRename, peer, err)
	}
	return reply(s.rename(ctx, target, name))
}

func (s *Server) rename(ctx context.Context, id, name string) string {
	n, err := s.store.RenameDevice(ctx, id, name)
	if err != nil {
		s.log.Error("rename of %s failed: %v", id, err)
		return RespRenameFailed
	}
	if n == 0 {
		return fmt.Sprintf("No data found for device %s", id)
	}
	s.log.Info("renamed %s to %q", id, name)
	return fmt.Sprintf("Renamed %s to %s", id, name)
}

func (s *Server) handleSetup(ctx context.Context) Result {
	for attempt := 0; attempt < maxSetupAttempts; attempt++ {
		id := s.opts.NewID()
		if id == "" || id == config.UnsetDeviceID || s.registry.IsRegistered(id) {
			continue
		}
		exists, err := s.store.DeviceExists(ctx, id)
		if err != nil {
			s.log.Error("setup collision check failed: %v", err)
			return reply(RespSetupFailed)
		}
		if exists {
			continue
		}

		if err := s.registry.Register(id); err != nil {
			s.log.Error("setup could not persist %s: %v", id, err)
			return reply(RespSetupFailed)
		}
		s.log.Info("registered new device %s", id)
		return reply(id)
	}

	s.log.Error("setup gave up after %d colliding ids", maxSetupAttempts)
	return reply(RespSetupFailed)
}

func (s *Server) handleRemove(ctx context.Context, p protocol.Payload, peer net.Addr) Result {
	target, err := p.String(protocol.KeyRemovedDeviceID)
	if err != nil {
		return s.fieldError(protocol.Remove, peer, err)
	}

	n, err := s.store.DeleteAllFor(ctx, target)
	if err != nil {
		s.log.Error("delete of %s failed: %v", target, err)
		return reply(RespRemoveFailed)
	}
	wasRegistered, err := s.registry.Remove(target)
	if err != nil {
		s.log.Error("registry update for %s failed: %v", target, err)
		return reply(RespRemoveFailed)
	}

	if n == 0 && !wasRegistered {
		return reply(fmt.Sprintf("Device %s not found", target))
	}
	s.log.Info("removed %s (%d samples)", target, n)
	return reply(fmt.Sprintf("Removed %s (%d samples deleted)", target, n))
}

// handleList names every stored device except admins.
func (s *Server) handleList(ctx context.Context) Result {
	devices, err := store.ListDevices(ctx, s.store, s.registry.IsAdminID)
	if err != nil {
		s.log.Error("list failed: %v", err)
		return reply(RespListFailed)
	}
	if len(devices) == 0 {
		return reply(RespNoDevices)
	}
	return reply(FormatDeviceList(devices))
}

// FormatDeviceList renders one "name: id" line per device.
func FormatDeviceList(devices []store.Device) string {
	lines := make([]string, len(devices))
	for i, d := range devices {
		lines[i] = fmt.Sprintf("%s: %s", d.Name, d.ID)
	}
	return strings.Join(lines, "\n")
}

func (s *Server) handleUpdateServer() Result {
	if err := s.registry.Reload(); err != nil {
		s.log.Error("reload failed: %v", err)
		return reply(RespReloadFailed)
	}
	s.log.Info("server config reloaded")
	return reply(RespReloaded)
}

// handleExit only honors loopback peers.
func (s *Server) handleExit(peer net.Addr) Result {
	if !isLoopback(peer) {
		s.metrics.AuthDenied.Inc()
		s.log.Warn("EXIT from non-local peer %s ignored", peer)
		return reply(RespDenied)
	}
	return Result{Body: RespStopping, Respond: true, Stop: true}
}

func isLoopback(addr net.Addr) bool {
	if addr == nil {
		return false
	}
	host := addr.String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

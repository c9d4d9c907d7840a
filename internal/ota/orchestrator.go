// Package ota implements the OTA Orchestrator (C6): it builds device-scoped
// update manifests from a repository checkout on disk and hands them to the
// Bus Adapter for publication, mirroring the bootstrap manager's own
// download_and_apply contract on the device side.
package ota

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/state"
)

// Orchestrator is the OTA Orchestrator (C6).
type Orchestrator struct {
	cfg      config.OTAConfig
	bus      *bus.Adapter
	registry *codec.Registry
	store    *state.Store
	log      *logging.Logger

	mu       sync.Mutex
	attempts map[string]*Attempt // by device_id, most recent only

	scheduler *cron.Cron
}

// New builds an Orchestrator over the given repository checkout root
// (cfg.SourceRoot). cfg may leave SourceRoot empty when OTA is not in use;
// BuildManifest then always fails with ErrSourceRootNotConfigured.
func New(cfg config.OTAConfig, adapter *bus.Adapter, registry *codec.Registry, store *state.Store, log *logging.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, bus: adapter, registry: registry, store: store, log: log, attempts: make(map[string]*Attempt)}
}

// StartScheduler parses cfg.Schedule as a standard 5-field cron expression
// and begins triggering a cfg.DefaultRef rollout to every known device on
// that schedule. It is a no-op when cfg.Schedule is empty. Safe to call at
// most once per Orchestrator.
func (o *Orchestrator) StartScheduler() error {
	if o.cfg.Schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(o.cfg.Schedule, o.runScheduledRollout); err != nil {
		return fmt.Errorf("parsing ota schedule %q: %w", o.cfg.Schedule, err)
	}
	c.Start()
	o.scheduler = c
	o.log.Info("ota scheduler started", "schedule", o.cfg.Schedule, "ref", o.cfg.DefaultRef)
	return nil
}

// StopScheduler stops the cron scheduler, if one was started. Safe to call
// even when StartScheduler was never called or found no schedule.
func (o *Orchestrator) StopScheduler() {
	if o.scheduler == nil {
		return
	}
	<-o.scheduler.Stop().Done()
}

// runScheduledRollout triggers an update for every device the State Store
// currently knows about, using cfg.DefaultRef. Individual failures are
// logged and do not stop the sweep over the remaining devices.
func (o *Orchestrator) runScheduledRollout() {
	for deviceID := range o.store.SnapshotAll() {
		if err := o.TriggerUpdate(deviceID, o.cfg.DefaultRef); err != nil {
			o.log.Error("scheduled ota rollout failed", "device_id", deviceID, "error", err)
		}
	}
}

// BuildManifest enumerates devices/<deviceID>/app/** and shared/** under
// the configured source root and returns the serialized manifest payload.
// It never publishes — that happens in TriggerUpdate, or is skipped
// entirely when the caller only wants a preview.
func (o *Orchestrator) BuildManifest(deviceID, ref string) ([]byte, error) {
	m, err := o.buildManifest(deviceID, ref)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (o *Orchestrator) buildManifest(deviceID, ref string) (*Manifest, error) {
	if o.cfg.SourceRoot == "" {
		return nil, ErrSourceRootNotConfigured
	}
	if o.store.Snapshot(deviceID) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
	}
	if ref == "" {
		ref = o.cfg.DefaultRef
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	rootFS := os.DirFS(o.cfg.SourceRoot)

	appPaths, err := enumerate(rootFS, "devices/"+deviceID+"/app", "app", o.cfg.DenyList)
	if err != nil {
		return nil, fmt.Errorf("enumerating device app tree: %w", err)
	}
	sharedPaths, err := enumerate(rootFS, "shared", "shared", o.cfg.DenyList)
	if err != nil {
		return nil, fmt.Errorf("enumerating shared tree: %w", err)
	}

	files := make([]ManifestFile, 0, len(appPaths)+len(sharedPaths))
	for _, p := range append(appPaths, sharedPaths...) {
		files = append(files, ManifestFile{Path: p, URL: o.urlFor(ref, p)})
	}
	sortFiles(files)

	return &Manifest{Ref: ref, Files: files}, nil
}

func (o *Orchestrator) urlFor(ref, repoPath string) string {
	base := o.cfg.ProxyBaseURL
	if base == "" {
		base = o.cfg.RawBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + ref + "/" + repoPath
}

// TriggerUpdate builds the manifest for deviceID/ref and publishes it to
// the device's update topic via the Bus Adapter, recording the attempt for
// OnStateChange to later mark failed if the device reports needs_help
// instead of progressing through its update_received/updating/updated
// sequence. No retries happen at this layer; the device's own status
// progression is the only signal of success.
func (o *Orchestrator) TriggerUpdate(deviceID, ref string) error {
	m, err := o.buildManifest(deviceID, ref)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}

	topic, encoded, err := o.registry.EncodeCommand(codec.CommandUpdate, codec.UpdateArgs{DeviceID: deviceID, Manifest: payload})
	if err != nil {
		return err
	}

	if err := o.bus.Publish(bus.OutboundMessage{Topic: topic, Payload: encoded}); err != nil {
		return fmt.Errorf("publishing update manifest: %w", err)
	}

	o.mu.Lock()
	o.attempts[deviceID] = &Attempt{DeviceID: deviceID, Ref: m.Ref}
	o.mu.Unlock()
	return nil
}

// OnStateChange marks the most recent OTA attempt for a device failed once
// it transitions to needs_help, the signal that its update cycle did not
// complete cleanly.
func (o *Orchestrator) OnStateChange(c state.StateChange) {
	if c.Kind != state.ChangeSos && c.Kind != state.ChangeHealth {
		return
	}
	if c.After == nil || c.After.Status != state.StatusNeedsHelp {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[c.DeviceID]
	if !ok || a.Failed {
		return
	}
	a.Failed = true
	o.log.Warn("OTA attempt marked failed", "device_id", c.DeviceID, "ref", a.Ref)
}

// LastAttempt returns the most recent OTA attempt recorded for deviceID, or
// nil if none has been triggered since startup.
func (o *Orchestrator) LastAttempt(deviceID string) *Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[deviceID]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	if strings.ContainsAny(ref, "/\\ \t\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

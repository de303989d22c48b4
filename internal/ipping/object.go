package ipping

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/logging"
)

// Object is the IP Ping object with its single instance.
type Object struct {
	mu       sync.Mutex
	cfg      Configuration
	shadow   Configuration
	stats    statsStore
	session  *session
	host     ProcessHost
	sched    Scheduler
	notifier dm.Notifier
	logger   *slog.Logger
	onFinish func(ProbeResult)
	now      func() time.Time
}

// Option configures an Object.
type Option func(*Object)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Object) {
		o.logger = logger
	}
}

// WithFinishHandler registers fn to receive every finished probe.
// fn runs with the object locked and must not call back into it.
func WithFinishHandler(fn func(ProbeResult)) Option {
	return func(o *Object) {
		o.onFinish = fn
	}
}

// WithConfiguration sets the initial configuration without validation.
func WithConfiguration(cfg Configuration) Option {
	return func(o *Object) {
		o.cfg = cfg
	}
}

// New creates the object. notifier may be nil.
func New(host ProcessHost, sched Scheduler, notifier dm.Notifier, opts ...Option) *Object {
	o := &Object{
		host:     host,
		sched:    sched,
		notifier: notifier,
		now:      time.Now,
	}
	o.stats.notify = o.notifyChanged
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.GetLogger("ipping")
	}
	return o
}

func (o *Object) notifyChanged(rid dm.ResourceID) {
	if o.notifier == nil {
		return
	}
	o.notifier.NotifyChanged(dm.Path{OID: ObjectID, IID: InstanceID, RID: rid})
}

// ID returns the object id.
func (o *Object) ID() dm.ObjectID {
	return ObjectID
}

// Resources returns the resource table.
func (o *Object) Resources() []dm.ResourceDef {
	return Resources()
}

// Instances returns the single instance id.
func (o *Object) Instances() []dm.InstanceID {
	return []dm.InstanceID{InstanceID}
}

// Configuration returns a copy of the current configuration.
func (o *Object) Configuration() Configuration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Statistics returns a copy of the current statistics.
func (o *Object) Statistics() Statistics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats.Statistics
}

// Read returns the value of a readable resource.
func (o *Object) Read(iid dm.InstanceID, rid dm.ResourceID) (dm.Value, error) {
	if err := checkInstance(iid); err != nil {
		return dm.Value{}, err
	}
	def, ok := lookupResource(rid)
	if !ok {
		return dm.Value{}, dm.NewError(dm.CodeNotFound, fmt.Sprintf("resource %d not found", rid))
	}
	if !def.Ops.Has(dm.OpRead) {
		return dm.Value{}, dm.NewError(dm.CodeMethodNotAllowed, fmt.Sprintf("resource %s is not readable", def.Name))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if rid <= ResDSCP {
		return o.cfg.value(rid), nil
	}
	return o.stats.value(rid), nil
}

// Write stores a configuration value. A finished probe result is cleared
// first; writes are refused while a probe is running.
func (o *Object) Write(iid dm.InstanceID, rid dm.ResourceID, v dm.Value) error {
	if err := checkInstance(iid); err != nil {
		return err
	}
	def, ok := lookupResource(rid)
	if !ok || !def.Ops.Has(dm.OpWrite) {
		return dm.NewError(dm.CodeMethodNotAllowed, fmt.Sprintf("resource %d is not writable", rid))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.resetState(); err != nil {
		return err
	}
	if err := o.cfg.set(rid, v); err != nil {
		o.logger.Debug("Rejected write", "resource", def.Name, "error", err)
		return err
	}
	return nil
}

// Execute starts a probe. Only the run resource is executable.
func (o *Object) Execute(iid dm.InstanceID, rid dm.ResourceID) error {
	if err := checkInstance(iid); err != nil {
		return err
	}
	if rid != ResRun {
		return dm.NewError(dm.CodeMethodNotAllowed, fmt.Sprintf("resource %d is not executable", rid))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.resetState(); err != nil {
		return err
	}
	o.stats.setState(o.start())
	return nil
}

// resetState clears a finished result. Must be called with o.mu held.
func (o *Object) resetState() error {
	switch o.stats.State {
	case StateNone:
		return nil
	case StateInProgress:
		return dm.NewError(dm.CodeInternal, "cannot cancel a running probe")
	default:
		o.stats.setState(StateNone)
		return nil
	}
}

// TransactionBegin snapshots the configuration.
func (o *Object) TransactionBegin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shadow = o.cfg
	return nil
}

// TransactionValidate accepts every transaction; fields are checked on write.
func (o *Object) TransactionValidate() error {
	return nil
}

// TransactionCommit keeps the written configuration.
func (o *Object) TransactionCommit() error {
	return nil
}

// TransactionRollback restores the configuration snapshot.
func (o *Object) TransactionRollback() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = o.shadow
	return nil
}

// Release stops a running probe and releases its stream.
func (o *Object) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.teardown()
	}
}

func checkInstance(iid dm.InstanceID) error {
	if iid != InstanceID {
		return dm.NewError(dm.CodeNotFound, fmt.Sprintf("instance %d not found", iid))
	}
	return nil
}

var _ dm.Object = (*Object)(nil)

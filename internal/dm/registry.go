package dm

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry dispatches calls to registered objects by object id.
// Transactions and executes on the same object are serialized.
type Registry struct {
	mu      sync.RWMutex
	objects map[ObjectID]Object
	txns    map[ObjectID]*sync.Mutex
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		objects: make(map[ObjectID]Object),
		txns:    make(map[ObjectID]*sync.Mutex),
		logger:  logger,
	}
}

// Register adds an object. Registering the same id twice is an error.
func (r *Registry) Register(obj Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[obj.ID()]; exists {
		return fmt.Errorf("object %d already registered", obj.ID())
	}
	r.objects[obj.ID()] = obj
	r.txns[obj.ID()] = &sync.Mutex{}
	r.logger.Debug("Object registered", "oid", obj.ID(), "resources", len(obj.Resources()))
	return nil
}

// Object returns the registered object or ErrNotFound.
func (r *Registry) Object(oid ObjectID) (Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[oid]
	if !ok {
		return nil, NewError(CodeNotFound, fmt.Sprintf("object %d not found", oid))
	}
	return obj, nil
}

// Objects returns all registered objects ordered by id.
func (r *Registry) Objects() []Object {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Object, 0, len(r.objects))
	for _, obj := range r.objects {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Read reads a single resource.
func (r *Registry) Read(p Path) (Value, error) {
	obj, err := r.Object(p.OID)
	if err != nil {
		return Value{}, err
	}
	return obj.Read(p.IID, p.RID)
}

// ReadInstance reads every readable resource of an instance.
func (r *Registry) ReadInstance(oid ObjectID, iid InstanceID) (map[ResourceID]Value, error) {
	obj, err := r.Object(oid)
	if err != nil {
		return nil, err
	}

	values := make(map[ResourceID]Value)
	for _, def := range obj.Resources() {
		if !def.Ops.Has(OpRead) {
			continue
		}
		v, readErr := obj.Read(iid, def.ID)
		if readErr != nil {
			return nil, readErr
		}
		values[def.ID] = v
	}
	return values, nil
}

// lock returns the object with its transaction lock held.
func (r *Registry) lock(oid ObjectID) (Object, func(), error) {
	obj, err := r.Object(oid)
	if err != nil {
		return nil, nil, err
	}
	r.mu.RLock()
	txn := r.txns[oid]
	r.mu.RUnlock()

	txn.Lock()
	return obj, txn.Unlock, nil
}

// Execute executes a resource.
func (r *Registry) Execute(p Path) error {
	obj, unlock, err := r.lock(p.OID)
	if err != nil {
		return err
	}
	defer unlock()
	return obj.Execute(p.IID, p.RID)
}

// Write writes a single resource inside a transaction.
func (r *Registry) Write(p Path, v Value) error {
	return r.WriteInstance(p.OID, p.IID, map[ResourceID]Value{p.RID: v})
}

// WriteInstance applies all values to one instance as a single transaction.
// Writes are applied in ascending resource id order. On the first failure the
// object is rolled back and that failure is returned. Concurrent transactions
// on the same object run one after another.
func (r *Registry) WriteInstance(oid ObjectID, iid InstanceID, values map[ResourceID]Value) error {
	obj, unlock, err := r.lock(oid)
	if err != nil {
		return err
	}
	defer unlock()

	rids := make([]ResourceID, 0, len(values))
	for rid := range values {
		rids = append(rids, rid)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })

	if err := obj.TransactionBegin(); err != nil {
		return fmt.Errorf("transaction begin: %w", err)
	}

	for _, rid := range rids {
		if writeErr := obj.Write(iid, rid, values[rid]); writeErr != nil {
			p := Path{OID: oid, IID: iid, RID: rid}
			r.logger.Debug("Write failed, rolling back", "path", p.String(), "error", writeErr)
			return r.rollback(obj, writeErr)
		}
	}

	if err := obj.TransactionValidate(); err != nil {
		return r.rollback(obj, err)
	}
	if err := obj.TransactionCommit(); err != nil {
		return r.rollback(obj, err)
	}
	return nil
}

func (r *Registry) rollback(obj Object, cause error) error {
	if err := obj.TransactionRollback(); err != nil {
		r.logger.Error("Transaction rollback failed", "oid", obj.ID(), "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

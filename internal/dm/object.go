package dm

// Notifier receives resource change notifications.
// Implementations must not call back into the object that notified.
type Notifier interface {
	NotifyChanged(p Path)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(p Path)

// NotifyChanged calls f(p).
func (f NotifierFunc) NotifyChanged(p Path) {
	f(p)
}

// Object is implemented by every object registered with a Registry.
type Object interface {
	ID() ObjectID
	Resources() []ResourceDef
	Instances() []InstanceID

	Read(iid InstanceID, rid ResourceID) (Value, error)
	Write(iid InstanceID, rid ResourceID, v Value) error
	Execute(iid InstanceID, rid ResourceID) error

	TransactionBegin() error
	TransactionValidate() error
	TransactionCommit() error
	TransactionRollback() error
}

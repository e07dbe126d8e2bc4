package store

import "context"

// WriteObserver is told about every write attempted against a KV.
type WriteObserver interface {
	ObserveWrite(op, key string, err error)
}

// ObserverFunc adapts a function to WriteObserver.
type ObserverFunc func(op, key string, err error)

func (f ObserverFunc) ObserveWrite(op, key string, err error) { f(op, key, err) }

type observed struct {
	KV
	observers []WriteObserver
}

// Observed wraps kv so each Set and Remove is reported to the observers.
func Observed(kv KV, observers ...WriteObserver) KV {
	return &observed{KV: kv, observers: observers}
}

func (o *observed) Set(ctx context.Context, key, value string) error {
	err := o.KV.Set(ctx, key, value)
	o.notify("set", key, err)
	return err
}

func (o *observed) Remove(ctx context.Context, key string) error {
	err := o.KV.Remove(ctx, key)
	o.notify("remove", key, err)
	return err
}

func (o *observed) notify(op, key string, err error) {
	for _, obs := range o.observers {
		obs.ObserveWrite(op, key, err)
	}
}

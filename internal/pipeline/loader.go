package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/vm"
)

// StoreLoader loads published bundles into a VM on first reference.
type StoreLoader struct {
	ctx   context.Context
	store *iface.Store
}

func NewStoreLoader(ctx context.Context, store *iface.Store) *StoreLoader {
	return &StoreLoader{ctx: ctx, store: store}
}

func (l *StoreLoader) LoadArtifacts(module string) ([]*vm.Artifact, error) {
	p, err := l.store.Lookup(l.ctx, module)
	if err != nil {
		return nil, err
	}
	b, err := vm.Deserialize(p.Bundle)
	if err != nil {
		return nil, errors.Wrapf(err, "bundle of %s (unit %s)", module, p.Unit)
	}
	if b.Module != module {
		return nil, errors.Errorf("bundle stored under %s holds module %s", module, b.Module)
	}
	return b.Artifacts, nil
}

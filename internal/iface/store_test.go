package iface

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/miniml/internal/typesystem"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	in := &Interface{Module: "Lib"}
	in.Add("double", typesystem.NewFunc(typesystem.Int, typesystem.Int))
	unit := uuid.New()
	require.NoError(t, s.Publish(ctx, unit, in, []byte{1, 2, 3}))

	p, err := s.Lookup(ctx, "Lib")
	require.NoError(t, err)
	require.Equal(t, unit, p.Unit)
	require.Equal(t, []byte{1, 2, 3}, p.Bundle)
	require.Equal(t, in.Render(), p.Interface.Render())
	require.False(t, p.PublishedAt.IsZero())

	got, err := s.ImportInterface("Lib")
	require.NoError(t, err)
	ty, ok := got.Lookup("double")
	require.True(t, ok)
	require.True(t, typesystem.Equal(ty, in.Exports[0].Type))
}

func TestStoreRepublishReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := &Interface{Module: "Lib"}
	first.Add("x", typesystem.Int)
	require.NoError(t, s.Publish(ctx, uuid.New(), first, []byte{1}))

	second := &Interface{Module: "Lib"}
	second.Add("y", typesystem.String)
	unit := uuid.New()
	require.NoError(t, s.Publish(ctx, unit, second, []byte{2}))

	p, err := s.Lookup(ctx, "Lib")
	require.NoError(t, err)
	require.Equal(t, unit, p.Unit)
	_, hasX := p.Interface.Lookup("x")
	require.False(t, hasX)

	names, err := s.Modules(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Lib"}, names)
}

func TestStoreMissingModule(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ImportInterface("Nope")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Remove(context.Background(), "Nope"))
}

// Package sqlstore is a reference Get/Put/Modify handler backed by
// Postgres instead of the in-memory L2 store, demonstrating that a
// handler's native implementation can be anything so long as it answers
// the same dispatch protocol (spec.md invariant I7).
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepnoodle-ai/effectvm/driver"
	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/value"
)

// Store wraps a connection pool over a single key/value table:
//
//	create table effectvm_store (key text primary key, value text not null)
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Table creation/migration is the
// embedder's responsibility.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Modifier is the shape a value.Value must satisfy (via Interface()) to
// be used as a Modify effect's modifier when this store is installed.
// Standard's Modify handles its modifier via a NeedsHost round trip
// through the driver's FuncResolver; sqlstore instead invokes it
// directly inside the same host call, since the store already owns the
// blocking I/O and there is no benefit to a second round trip.
type Modifier func(old value.Value) (value.Value, error)

// AsModifier wraps fn so it can be used as a value.Modify effect's
// Modifier field when this store's handler is installed.
func AsModifier(fn Modifier) value.Value {
	return &value.Host{Tag: "sqlstore.modifier", Object: fn}
}

// Handler builds the HostCallableHandler to install around a program
// (or a Spawn's handler list) in place of the in-memory state handler.
func (s *Store) Handler() *handler.HostCallableHandler {
	return &handler.HostCallableHandler{
		Matches: func(e value.Effect) bool {
			switch e.EffectType() {
			case value.EffectGet, value.EffectPut, value.EffectModify:
				return true
			default:
				return false
			}
		},
		Opaque: s,
	}
}

// Resolver builds the driver.HandlerResolver to pass to
// effectvm.WithHandlerResolver alongside Handler.
func (s *Store) Resolver() driver.HandlerResolver {
	return func(opaque any, effect value.Effect) (driver.HostFunc, bool) {
		store, ok := opaque.(*Store)
		if !ok || store != s {
			return nil, false
		}
		return func(ctx context.Context, _ []value.Value) (value.Value, error) {
			switch eff := effect.(type) {
			case value.Get:
				return store.get(ctx, eff.Key)
			case value.Put:
				return store.put(ctx, eff.Key, eff.Value)
			case value.Modify:
				return store.modify(ctx, eff.Key, eff.Modifier)
			default:
				return nil, fmt.Errorf("sqlstore: unsupported effect %v", effect.EffectType())
			}
		}, true
	}
}

func (s *Store) get(ctx context.Context, key string) (value.Value, error) {
	var encoded string
	err := s.pool.QueryRow(ctx, `select value from effectvm_store where key = $1`, key).Scan(&encoded)
	if err != nil {
		return value.Nil, nil
	}
	return value.NewString(encoded), nil
}

func (s *Store) put(ctx context.Context, key string, v value.Value) (value.Value, error) {
	old, _ := s.get(ctx, key)
	_, err := s.pool.Exec(ctx, `
		insert into effectvm_store (key, value) values ($1, $2)
		on conflict (key) do update set value = excluded.value
	`, key, v.Inspect())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: put %q: %w", key, err)
	}
	return old, nil
}

func (s *Store) modify(ctx context.Context, key string, modifierVal value.Value) (value.Value, error) {
	modifier, ok := modifierVal.Interface().(Modifier)
	if !ok {
		return nil, fmt.Errorf("sqlstore: modifier for key %q is not a sqlstore.Modifier", key)
	}
	old, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	updated, err := modifier(old)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: modifier for key %q: %w", key, err)
	}
	if _, err := s.put(ctx, key, updated); err != nil {
		return nil, err
	}
	return old, nil
}

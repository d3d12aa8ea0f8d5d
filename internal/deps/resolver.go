package deps

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Resolver — одна именованная зависимость данных.
type Resolver interface {
	// Key — имя зависимости (соответствует AlgorithmDefinition.Dependencies).
	Key() string

	// Resolve материализует артефакт зависимости для snapshot.
	// Возвращается только при успехе; повторный вызов для того же
	// snapshotID обязан быть безопасен.
	Resolve(ctx context.Context, snapshotID string) error
}

// Set — закрытый набор известных resolver'ов.
//
// Строится один раз при старте процесса и дальше только читается.
type Set struct {
	resolvers map[string]Resolver
	logger    *slog.Logger
}

// NewSet создаёт Set из resolver'ов.
func NewSet(logger *slog.Logger, resolvers ...Resolver) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	byKey := make(map[string]Resolver, len(resolvers))
	for _, r := range resolvers {
		byKey[r.Key()] = r
	}
	return &Set{resolvers: byKey, logger: logger}
}

// Resolve выполняет resolver по ключу.
//
// Нераспознанный ключ — ErrUnknownDependency: дефект, который нельзя
// молча пропустить и бессмысленно ретраить.
func (s *Set) Resolve(ctx context.Context, key, snapshotID string) error {
	resolver, ok := s.resolvers[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDependency, key)
	}

	started := time.Now()
	if err := resolver.Resolve(ctx, snapshotID); err != nil {
		return fmt.Errorf("resolve %s: %w", key, err)
	}

	s.logger.Info("dependency resolved",
		"dependency", key,
		"snapshot_id", snapshotID,
		"duration", time.Since(started),
	)
	return nil
}

// Known возвращает true, если ключ зарегистрирован.
func (s *Set) Known(key string) bool {
	_, ok := s.resolvers[key]
	return ok
}

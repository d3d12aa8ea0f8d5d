package compute

import (
	"context"
	"fmt"

	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/storage"
)

// Result — результат выполнения алгоритма.
type Result struct {
	// Outputs — логический ключ → inline-значение или ссылка на артефакт.
	Outputs map[string]any
}

// Func — compute-функция одного алгоритма.
//
// Получает snapshot, типизированные входные параметры и доступ к хранилищу
// артефактов. Побочные эффекты ограничены записью артефактов по
// детерминированным ключам snapshot'а.
type Func func(ctx context.Context, snap *domain.Snapshot, in Inputs, store storage.ObjectStore) (*Result, error)

// Dispatcher — таблица маршрутизации "ключ алгоритма → реализация".
//
// Строится один раз при старте runtime-процесса и дальше только читается —
// конкурентный Dispatch безопасен без синхронизации.
type Dispatcher struct {
	reg   *registry.Registry
	store storage.ObjectStore
	funcs map[string]Func
}

// NewDispatcher создаёт Dispatcher с зарегистрированными reference-алгоритмами.
func NewDispatcher(reg *registry.Registry, store storage.ObjectStore) *Dispatcher {
	d := &Dispatcher{
		reg:   reg,
		store: store,
		funcs: make(map[string]Func),
	}
	d.Register("voting_engagement", votingEngagement)
	d.Register("content_diversity", contentDiversity)
	d.Register("activity_decay", activityDecay)
	return d
}

// Register добавляет реализацию алгоритма.
// Вызывается только при инициализации процесса, до первого Dispatch.
func (d *Dispatcher) Register(key string, fn Func) {
	d.funcs[key] = fn
}

// Supports возвращает true, если реализация ключа зарегистрирована.
func (d *Dispatcher) Supports(key string) bool {
	_, ok := d.funcs[key]
	return ok
}

// Dispatch выполняет алгоритм замороженного пресета snapshot'а.
//
// Неизвестный ключ — ErrUnsupportedAlgorithm до какого-либо обращения
// к хранилищу. Извлечение входов — до вызова реализации, чтобы
// MissingInput/InvalidInputType были отличимы от ошибок вычисления.
func (d *Dispatcher) Dispatch(ctx context.Context, snap *domain.Snapshot) (*Result, error) {
	key := snap.Preset.Key

	fn, ok := d.funcs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, key)
	}

	def, err := d.reg.Resolve(key, snap.Preset.Version)
	if err != nil {
		return nil, fmt.Errorf("resolve definition: %w", err)
	}

	in, err := ExtractInputs(def, snap.Preset)
	if err != nil {
		return nil, err
	}

	result, err := fn(ctx, snap, in, d.store)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrComputeFailed, key, err)
	}
	return result, nil
}

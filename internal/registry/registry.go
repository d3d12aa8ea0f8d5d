package registry

import (
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/savichev/reputa/internal/domain"
)

// Registry — неизменяемая таблица определений алгоритмов.
//
// Строится один раз из списка опубликованных определений (обычно —
// выгрузка из репозитория при старте процесса). Методы безопасны для
// конкурентного вызова: после New таблица не мутируется.
type Registry struct {
	// byKey — определения под ключом, без гарантированного порядка.
	byKey map[string][]domain.AlgorithmDefinition
}

// New создаёт Registry из списка определений.
func New(defs []domain.AlgorithmDefinition) *Registry {
	byKey := make(map[string][]domain.AlgorithmDefinition)
	for _, def := range defs {
		byKey[def.Key] = append(byKey[def.Key], def)
	}
	return &Registry{byKey: byKey}
}

// Resolve возвращает определение по ключу и версии.
//
// Пустая version означает "latest": выбирается версия с наивысшим
// semver-приоритетом под ключом (prerelease ниже соответствующего релиза).
// Точная версия сравнивается по semver-приоритету, т.е. build-метаданные
// при поиске игнорируются.
func (r *Registry) Resolve(key, version string) (domain.AlgorithmDefinition, error) {
	defs, ok := r.byKey[key]
	if !ok || len(defs) == 0 {
		return domain.AlgorithmDefinition{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	if version == "" {
		return latest(defs), nil
	}

	for _, def := range defs {
		if Compare(def.Version, version) == 0 {
			return def, nil
		}
	}
	return domain.AlgorithmDefinition{}, fmt.Errorf("%w: %s@%s", ErrVersionNotFound, key, version)
}

// Keys возвращает все ключи таблицы.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for key := range r.byKey {
		keys = append(keys, key)
	}
	return keys
}

// Versions возвращает все опубликованные версии ключа.
func (r *Registry) Versions(key string) []string {
	defs := r.byKey[key]
	versions := make([]string, 0, len(defs))
	for _, def := range defs {
		versions = append(versions, def.Version)
	}
	return versions
}

// latest выбирает определение с наивысшим semver-приоритетом.
// Равный приоритет недостижим при публикации (дубликаты отклоняются),
// но компаратор на нём не падает — берётся первое из равных.
func latest(defs []domain.AlgorithmDefinition) domain.AlgorithmDefinition {
	best := defs[0]
	for _, def := range defs[1:] {
		if Compare(def.Version, best.Version) > 0 {
			best = def
		}
	}
	return best
}

// Compare сравнивает две версии по semver-приоритету.
// Возвращает -1, 0 или +1. Build-метаданные игнорируются.
// Невалидная версия считается меньше любой валидной (semver.Compare
// такое значение принимает, не паникуя).
func Compare(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

package registry

import "errors"

// Ошибки registry.
var (
	// ErrKeyNotFound — под ключом нет ни одного определения.
	ErrKeyNotFound = errors.New("algorithm key not found")

	// ErrVersionNotFound — ключ есть, но запрошенной версии нет.
	ErrVersionNotFound = errors.New("algorithm version not found")

	// ErrInvalidKey — ключ не соответствует формату (проверка при публикации).
	ErrInvalidKey = errors.New("invalid algorithm key")

	// ErrInvalidVersion — версия не является полной semver-строкой.
	ErrInvalidVersion = errors.New("invalid algorithm version")
)

package deps

import "errors"

// Ошибки пакета deps.
var (
	// ErrUnknownDependency — ключ зависимости не зарегистрирован.
	// Дефект конфигурации процесса, не транзиентная ошибка.
	ErrUnknownDependency = errors.New("unknown dependency key")

	// ErrFetch — запрос к внешнему API зависимостей не удался.
	ErrFetch = errors.New("dependency fetch failed")
)

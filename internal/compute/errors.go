package compute

import "errors"

// Ошибки диспетчера compute.
var (
	// ErrUnsupportedAlgorithm — для ключа нет реализации в этом runtime.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrMissingInput — обязательный входной параметр отсутствует.
	ErrMissingInput = errors.New("missing input")

	// ErrInvalidInputType — входной параметр имеет неверный тип.
	ErrInvalidInputType = errors.New("invalid input type")

	// ErrComputeFailed — вычисление завершилось ошибкой.
	ErrComputeFailed = errors.New("compute failed")
)

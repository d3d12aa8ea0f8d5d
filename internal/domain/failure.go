package domain

// FailureKind — классификация терминальной ошибки snapshot.
//
// Kind различим в логах и метриках: оператор должен отличать
// "алгоритм неизвестен registry" (KeyNotFound) от "определение есть,
// но реализация не задеплоена в этот runtime" (UnsupportedAlgorithm).
type FailureKind string

const (
	// FailureKeyNotFound — в registry нет определений под ключом.
	FailureKeyNotFound FailureKind = "KeyNotFound"

	// FailureVersionNotFound — ключ есть, запрошенной версии нет.
	FailureVersionNotFound FailureKind = "VersionNotFound"

	// FailureUnsupportedRuntime — объявленный runtime не маршрутизируется.
	FailureUnsupportedRuntime FailureKind = "UnsupportedRuntime"

	// FailureUnsupportedAlgorithm — в runtime-воркере нет реализации ключа.
	FailureUnsupportedAlgorithm FailureKind = "UnsupportedAlgorithm"

	// FailureMissingInput — обязательный входной параметр отсутствует.
	FailureMissingInput FailureKind = "MissingInput"

	// FailureInvalidInputType — входной параметр имеет неверный тип.
	FailureInvalidInputType FailureKind = "InvalidInputType"

	// FailureDependency — разрешение зависимости исчерпало retry.
	FailureDependency FailureKind = "DependencyFailed"

	// FailureCompute — compute-вызов завершился ошибкой.
	FailureCompute FailureKind = "ComputeFailed"

	// FailureInternal — прочие ошибки оркестрации.
	FailureInternal FailureKind = "Internal"
)

// Failure — запись терминальной ошибки на snapshot.
//
// Персистится {kind, message, context} — никогда stack trace: запись
// остаётся стабильным аудиторским артефактом. Промежуточные (ретраенные)
// ошибки не персистятся, только итоговая.
type Failure struct {
	// Kind — классификация ошибки.
	Kind FailureKind `json:"kind"`

	// Message — человекочитаемое сообщение.
	Message string `json:"message"`

	// Context — дополнительные поля для диагностики
	// (ключ алгоритма, имя зависимости и т.п.).
	Context map[string]string `json:"context,omitempty"`
}

// NewFailure создаёт Failure с контекстом из пар ключ-значение.
func NewFailure(kind FailureKind, message string, kv ...string) Failure {
	f := Failure{Kind: kind, Message: message}
	if len(kv) >= 2 {
		f.Context = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			f.Context[kv[i]] = kv[i+1]
		}
	}
	return f
}

package domain

import "time"

// Runtime — семейство сред исполнения, для которого написана реализация
// алгоритма. Определяет, в какой пул воркеров уйдёт compute-вызов.
type Runtime string

const (
	// RuntimeTypescript — пул воркеров TypeScript-алгоритмов.
	RuntimeTypescript Runtime = "typescript"

	// RuntimePython — пул воркеров Python-алгоритмов.
	RuntimePython Runtime = "python"
)

// AlgorithmDefinition — версионированное определение алгоритма репутации.
//
// Определение неизменяемо после публикации. Под одним ключом может
// сосуществовать несколько версий; разрешение версии выполняет registry.
//
// Публикует внешний процесс (через API); оркестратор читает только.
type AlgorithmDefinition struct {
	// Key — ключ алгоритма: lowercase snake_case, начинается с буквы,
	// длина ≥ 2. Формат проверяется при публикации, не при resolve.
	Key string `json:"key"`

	// Version — полная semver-версия: MAJOR.MINOR.PATCH[-prerelease][+build].
	Version string `json:"version"`

	// Runtime — объявленная среда исполнения ("typescript", "python").
	Runtime Runtime `json:"runtime"`

	// Inputs — схема входных параметров.
	Inputs []IOField `json:"inputs,omitempty"`

	// Outputs — схема выходных значений.
	Outputs []IOField `json:"outputs,omitempty"`

	// Dependencies — ключи внешних зависимостей данных, которые должны
	// быть материализованы до запуска compute (см. пакет deps).
	Dependencies []string `json:"dependencies,omitempty"`

	// Idempotent — известна ли реализация как идемпотентная.
	// Только идемпотентные compute-вызовы ретраятся воркером.
	Idempotent bool `json:"idempotent,omitempty"`

	// Description — описание назначения алгоритма.
	Description string `json:"description,omitempty"`

	// PublishedAt — время публикации версии.
	PublishedAt time.Time `json:"published_at"`
}

// IOField — поле схемы входа или выхода алгоритма.
type IOField struct {
	// Key — имя поля.
	Key string `json:"key"`

	// Type — тип значения: "string", "number", "boolean", "csv".
	Type string `json:"type"`

	// Required — обязательное ли поле.
	Required bool `json:"required,omitempty"`

	// Columns — схема колонок для полей типа "csv".
	// Само содержимое CSV ядро не парсит и не валидирует.
	Columns []string `json:"columns,omitempty"`
}

// InputField возвращает поле входной схемы по ключу.
func (d *AlgorithmDefinition) InputField(key string) (IOField, bool) {
	for _, f := range d.Inputs {
		if f.Key == key {
			return f, true
		}
	}
	return IOField{}, false
}

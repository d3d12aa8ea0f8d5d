// Package routing выбирает очередь исполнения для объявленного runtime
// алгоритма.
//
// Выбор очереди — чистая функция от неизменяемого определения алгоритма и
// overrides, замороженных на snapshot при создании. Оркестратор намеренно
// не читает для этого конфигурацию процесса: возобновлённая после рестарта
// оркестрация обязана маршрутизироваться идентично вне зависимости от того,
// какой процесс её возобновил.
package routing

import (
	"errors"
	"fmt"

	"github.com/savichev/reputa/internal/domain"
)

// Очереди по умолчанию для пулов воркеров.
const (
	// DefaultTypescriptQueue — очередь пула TypeScript-алгоритмов.
	DefaultTypescriptQueue = "compute.typescript"

	// DefaultPythonQueue — очередь пула Python-алгоритмов.
	DefaultPythonQueue = "compute.python"
)

// ErrUnsupportedRuntime — runtime не маршрутизируется ни в один пул.
var ErrUnsupportedRuntime = errors.New("unsupported runtime")

// RouteQueue возвращает имя очереди для runtime с учётом overrides,
// замороженных на snapshot при создании.
//
// Неизвестный runtime — ошибка конфигурации: ErrUnsupportedRuntime
// с offending-значением для диагностики. Retry бессмысленен.
func RouteQueue(runtime domain.Runtime, o domain.QueueOverrides) (string, error) {
	switch runtime {
	case domain.RuntimeTypescript:
		if o.Typescript != "" {
			return o.Typescript, nil
		}
		return DefaultTypescriptQueue, nil

	case domain.RuntimePython:
		if o.Python != "" {
			return o.Python, nil
		}
		return DefaultPythonQueue, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRuntime, string(runtime))
	}
}

// Package compute — диспетчеризация алгоритмов внутри runtime-воркера.
//
// Dispatcher — статическая таблица "ключ алгоритма → функция", построенная
// один раз на процесс. Сам диспетчер бизнес-логики не содержит: только
// маршрутизация и единообразная трансляция ошибок.
//
// Ключ без зарегистрированной реализации — ErrUnsupportedAlgorithm. Это
// отличается от registry.ErrKeyNotFound: определение опубликовано, но
// реализация в этот runtime-воркер не задеплоена (deployment skew).
//
// Входные параметры замороженного пресета нетипизированы; extraction
// типизирует их по схеме определения. Отсутствующий обязательный параметр —
// ErrMissingInput, неверный тип — ErrInvalidInputType, оба именуют ключ.
package compute

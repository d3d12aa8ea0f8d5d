package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot — единица работы и её аудиторская запись.
//
// Snapshot создаётся когда оператор запускает версионированный алгоритм
// репутации. В момент создания с живого пресета снимается неизменяемая
// копия (FrozenPreset) — дальнейшие правки пресета на запущенный или
// завершённый snapshot не влияют.
//
// Статус и outputs меняет только Orchestrator. Остальные компоненты
// читают snapshot, но никогда не пишут в него.
type Snapshot struct {
	// ID — уникальный идентификатор snapshot. Назначается при создании.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус выполнения.
	Status SnapshotStatus `json:"status"`

	// Preset — замороженная копия алгоритма: ключ, версия и входные
	// параметры на момент создания. Неизменяема.
	Preset FrozenPreset `json:"algorithm_preset_frozen"`

	// QueueOverrides — переопределения очередей runtime, переданные
	// вызывающим при создании. Замораживаются вместе с пресетом: любой
	// процесс, возобновивший оркестрацию, маршрутизирует идентично.
	// Nil — очереди по умолчанию.
	QueueOverrides *QueueOverrides `json:"queue_overrides,omitempty"`

	// ExecutionRef — ссылка на remote-вызов compute (для корреляции и
	// отладки). Nil, пока вызов не отправлен.
	ExecutionRef *ExecutionRef `json:"execution_ref,omitempty"`

	// Outputs — результаты выполнения: логический ключ → inline-значение
	// или ссылка на артефакт в object storage.
	// Записываются ровно один раз, атомарно с переходом в completed.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Failure — описание терминальной ошибки (для status=failed).
	Failure *Failure `json:"failure,omitempty"`

	// CancelRequested — запрошена ли отмена. Orchestrator проверяет флаг
	// на границах шагов (кооперативная отмена, не mid-step).
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// CreatedAt — время создания snapshot.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последней мутации статуса или outputs.
	UpdatedAt time.Time `json:"updated_at"`
}

// FrozenPreset — неизменяемая копия алгоритма, снятая при создании snapshot.
type FrozenPreset struct {
	// Key — ключ алгоритма (lowercase snake_case).
	Key string `json:"key"`

	// Version — точная semver-версия, зафиксированная при создании.
	Version string `json:"version"`

	// Inputs — входные параметры в порядке объявления.
	// Значения нетипизированы: типизация выполняется диспетчером compute
	// по схеме определения алгоритма.
	Inputs []InputParam `json:"inputs,omitempty"`
}

// QueueOverrides — явные переопределения очередей исполнения от вызывающего.
type QueueOverrides struct {
	// Typescript — очередь вместо очереди TypeScript-пула по умолчанию.
	Typescript string `json:"typescript,omitempty"`

	// Python — очередь вместо очереди Python-пула по умолчанию.
	Python string `json:"python,omitempty"`
}

// InputParam — один входной параметр замороженного пресета.
type InputParam struct {
	// Key — имя параметра (соответствует IOField.Key в схеме).
	Key string `json:"key"`

	// Value — значение параметра.
	Value any `json:"value"`
}

// Input возвращает значение параметра по ключу.
// Второй результат — false, если параметр отсутствует.
func (p FrozenPreset) Input(key string) (any, bool) {
	for _, in := range p.Inputs {
		if in.Key == key {
			return in.Value, true
		}
	}
	return nil, false
}

// ExecutionRef — ссылка на remote-вызов compute.
type ExecutionRef struct {
	// InvocationID — идентификатор вызова (MessageId в очереди).
	InvocationID uuid.UUID `json:"invocation_id"`

	// Queue — очередь, в которую отправлен вызов.
	Queue string `json:"queue"`

	// Attempt — номер попытки оркестрации, создавшей вызов.
	Attempt int `json:"attempt"`
}

// Overrides возвращает замороженные переопределения очередей.
// Для snapshot без переопределений — нулевое значение.
func (s *Snapshot) Overrides() QueueOverrides {
	if s.QueueOverrides == nil {
		return QueueOverrides{}
	}
	return *s.QueueOverrides
}

// IsFinished возвращает true, если snapshot завершён (в любом статусе).
func (s *Snapshot) IsFinished() bool {
	return s.Status.IsTerminal()
}

// MarkRunning переводит snapshot в статус running.
func (s *Snapshot) MarkRunning() {
	s.Status = SnapshotRunning
	s.UpdatedAt = time.Now()
}

// MarkCompleted переводит snapshot в completed с результатами.
// Outputs и статус персистятся одной операцией (см. repo.SnapshotRepo).
func (s *Snapshot) MarkCompleted(outputs map[string]any) {
	s.Status = SnapshotCompleted
	s.Outputs = outputs
	s.UpdatedAt = time.Now()
}

// MarkFailed переводит snapshot в failed с записью ошибки.
func (s *Snapshot) MarkFailed(f Failure) {
	s.Status = SnapshotFailed
	s.Failure = &f
	s.UpdatedAt = time.Now()
}

// MarkCancelled переводит snapshot в cancelled.
func (s *Snapshot) MarkCancelled() {
	s.Status = SnapshotCancelled
	s.UpdatedAt = time.Now()
}

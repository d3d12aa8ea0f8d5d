package domain

import "time"

// RetryPolicy — политика повторных попыток и таймаут одного шага.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelay — начальная задержка перед повтором.
	InitialDelay time.Duration `json:"initial_delay,omitempty"`

	// MaxDelay — максимальная задержка между попытками.
	MaxDelay time.Duration `json:"max_delay,omitempty"`

	// Timeout — таймаут одной попытки.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Три яруса политики, различаемые ожидаемой длительностью и идемпотентностью
// шага. Оркестратор и воркер ссылаются на них по месту, не читая конфигурацию
// процесса: политика шага полностью определяется его типом.
var (
	// LookupPolicy — быстрые metadata-lookups (registry resolve).
	// Ошибки здесь дефиниционные, не транзиентные — retry не нужен.
	LookupPolicy = RetryPolicy{
		MaxAttempts: 1,
		Timeout:     5 * time.Second,
	}

	// PersistPolicy — быстрые операции персистентности (чтение/запись
	// статуса snapshot). Небольшой retry на транзиентные сбои связи.
	PersistPolicy = RetryPolicy{
		MaxAttempts:  3,
		Backoff:      "fixed",
		InitialDelay: 500 * time.Millisecond,
		Timeout:      time.Minute,
	}

	// LongRunPolicy — долгие шаги: разрешение зависимостей и выполнение
	// алгоритма. Экспоненциальный backoff, ограниченное число попыток;
	// исчерпание терминально (failed).
	LongRunPolicy = RetryPolicy{
		MaxAttempts:  5,
		Backoff:      "exponential",
		InitialDelay: 2 * time.Second,
		MaxDelay:     time.Minute,
		Timeout:      30 * time.Minute,
	}
)

// Delay вычисляет задержку перед попыткой attempt (начиная с 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch p.Backoff {
	case "exponential":
		// delay = initial * 2^(attempt-1)
		delay = initial
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initial
		delay = initial
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

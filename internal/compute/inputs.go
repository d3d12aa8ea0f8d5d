package compute

import (
	"fmt"

	"github.com/savichev/reputa/internal/domain"
)

// Inputs — типизированные входные параметры алгоритма.
type Inputs map[string]any

// ExtractInputs типизирует параметры замороженного пресета по схеме
// определения.
//
// Для каждого поля схемы:
//   - значение отсутствует и поле обязательно → ErrMissingInput с ключом;
//   - значение отсутствует, поле опционально и числовое → 0
//     (совместимость с исходными алгоритмами; см. DESIGN.md);
//   - значение есть, но тип не совпадает → ErrInvalidInputType с ключом.
//
// Параметры пресета вне схемы игнорируются.
func ExtractInputs(def domain.AlgorithmDefinition, preset domain.FrozenPreset) (Inputs, error) {
	in := make(Inputs, len(def.Inputs))

	for _, field := range def.Inputs {
		raw, ok := preset.Input(field.Key)
		if !ok {
			if field.Required {
				return nil, fmt.Errorf("%w: %s", ErrMissingInput, field.Key)
			}
			if field.Type == "number" {
				in[field.Key] = float64(0)
			}
			continue
		}

		value, err := coerce(field, raw)
		if err != nil {
			return nil, err
		}
		in[field.Key] = value
	}

	return in, nil
}

// coerce приводит raw-значение к типу поля схемы.
func coerce(field domain.IOField, raw any) (any, error) {
	switch field.Type {
	case "string", "csv":
		// csv-входы передаются ссылкой на артефакт, т.е. строкой.
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s (want %s, got %T)", ErrInvalidInputType, field.Key, field.Type, raw)
		}
		return s, nil

	case "number":
		// После JSON-десериализации числа приходят как float64,
		// но литералы из Go-кода могут быть int.
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("%w: %s (want number, got %T)", ErrInvalidInputType, field.Key, raw)
		}

	case "boolean":
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s (want boolean, got %T)", ErrInvalidInputType, field.Key, raw)
		}
		return b, nil

	default:
		// Неизвестный тип схемы пропускаем как есть: валидация схемы —
		// забота публикации, не извлечения.
		return raw, nil
	}
}

// String возвращает строковый параметр.
func (in Inputs) String(key string) string {
	s, _ := in[key].(string)
	return s
}

// Number возвращает числовой параметр.
func (in Inputs) Number(key string) float64 {
	f, _ := in[key].(float64)
	return f
}

// Bool возвращает булев параметр.
func (in Inputs) Bool(key string) bool {
	b, _ := in[key].(bool)
	return b
}

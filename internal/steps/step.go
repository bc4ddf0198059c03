package steps

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Ошибки видов task.
var (
	// ErrUnknownKind — тип task не найден в реестре.
	ErrUnknownKind = errors.New("unknown task kind")

	// ErrInvalidParams — параметры task не прошли валидацию.
	ErrInvalidParams = errors.New("invalid task params")

	// ErrMissingName — в запросе не указан name.
	ErrMissingName = errors.New("task request has no name")
)

// Kind — вид task: тип task chain движка и правила его параметров.
//
// Каждый вид (StartUp, Fight, Recruit, ...) реализует этот интерфейс.
type Kind interface {
	// Type возвращает тип task chain ("Fight").
	Type() string

	// DisplayName возвращает имя task для журнала.
	DisplayName() string

	// Build разбирает параметры из JSON, проверяет их и
	// возвращает map для передачи движку.
	Build(raw json.RawMessage) (map[string]any, error)
}

// Params — параметры конкретного вида task.
type Params interface {
	Validate() error
}

// kind — Kind поверх структуры параметров P.
type kind[P any, PP interface {
	*P
	Params
}] struct {
	typ     string
	display string
}

func newKind[P any, PP interface {
	*P
	Params
}](typ, display string) Kind {
	return kind[P, PP]{typ: typ, display: display}
}

func (k kind[P, PP]) Type() string        { return k.typ }
func (k kind[P, PP]) DisplayName() string { return k.display }

func (k kind[P, PP]) Build(raw json.RawMessage) (map[string]any, error) {
	var p P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, k.typ, err)
		}
	}
	if err := PP(&p).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, k.typ, err)
	}
	return toMap(&p)
}

// toMap переводит структуру параметров в map через её JSON-теги,
// так что незаданные поля (omitempty) в map не попадают.
func toMap(p any) (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return out, nil
}

// Допустимые значения перечислений.
var (
	ClientTypes = []string{"Official", "Bilibili", "txwy", "YoStarEN", "YoStarJP", "YoStarKR"}
	Servers     = []string{"CN", "US", "JP", "KR"}
	Facilities  = []string{"Mfg", "Trade", "Power", "Control", "Reception", "Office", "Dorm"}
	DroneUsages = []string{"_NotUse", "Money", "SyntheticJade", "CombatRecord", "PureGold", "OriginStone", "Chip"}

	RoguelikeThemes   = []string{"Phantom", "Mizuki", "Sami", "Sarkaz"}
	ReclamationThemes = []string{"Fire", "Tales"}
)

func checkEnum(field string, v *string, allowed []string) error {
	if v == nil {
		return nil
	}
	if !slices.Contains(allowed, *v) {
		return fmt.Errorf("%s: %q is not one of %v", field, *v, allowed)
	}
	return nil
}

func checkRange(field string, v *int, lo, hi int) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return fmt.Errorf("%s: %d is out of range [%d, %d]", field, *v, lo, hi)
	}
	return nil
}

func checkNonNegative(field string, v *int) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("%s: must not be negative", field)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

package gate

import (
	"context"
	"fmt"
	"sync"
)

// Status — итог static gate.
type Status string

const (
	// AllOK — все ожидаемые узлы завершились успешно.
	AllOK Status = "ALL_OK"

	// PartialFailure — хотя бы один узел завершился неудачей.
	PartialFailure Status = "PARTIAL_FAILURE"
)

// Outcome — отчёт одного узла.
type Outcome struct {
	ID      string         `json:"id"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

// Result — итог ожидания набора узлов.
type Result struct {
	Status Status `json:"status"`

	// Failed — неудачные узлы в порядке набора.
	Failed []string `json:"failed,omitempty"`

	// Outcomes — отчёты в порядке набора.
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome возвращает отчёт узла по ID.
func (r Result) Outcome(id string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Static — gate с фиксированным набором ожидаемых ID.
//
// Набор задаётся при создании, поэтому отчёты могут прийти
// раньше вызова Await. Повторный отчёт того же ID игнорируется:
// остаётся первый. Повторов gate не делает.
type Static struct {
	name string
	ids  []string

	mu       sync.Mutex
	outcomes map[string]Outcome
	done     chan struct{}
}

// NewStatic создаёт gate для набора ids. Дубликаты в ids схлопываются.
func NewStatic(name string, ids []string) *Static {
	s := &Static{
		name:     name,
		outcomes: make(map[string]Outcome, len(ids)),
		done:     make(chan struct{}),
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			s.ids = append(s.ids, id)
		}
	}
	if len(s.ids) == 0 {
		close(s.done)
	}
	return s
}

// Name возвращает имя gate.
func (s *Static) Name() string {
	return s.name
}

// IDs возвращает ожидаемый набор.
func (s *Static) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Report регистрирует завершение узла.
// Возвращает ErrUnknownID, если id не входит в набор.
func (s *Static) Report(o Outcome) error {
	if !s.expects(o.ID) {
		return fmt.Errorf("gate %s: %w: %s", s.name, ErrUnknownID, o.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.outcomes[o.ID]; dup {
		return nil
	}
	s.outcomes[o.ID] = o

	if len(s.outcomes) == len(s.ids) {
		close(s.done)
	}
	return nil
}

// Pending возвращает ID, от которых ещё нет отчёта.
func (s *Static) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]string, 0)
	for _, id := range s.ids {
		if _, ok := s.outcomes[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

// Await ждёт отчётов от всех узлов набора.
func (s *Static) Await(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := Result{Status: AllOK, Outcomes: make([]Outcome, 0, len(s.ids))}
	for _, id := range s.ids {
		o := s.outcomes[id]
		result.Outcomes = append(result.Outcomes, o)
		if !o.OK {
			result.Status = PartialFailure
			result.Failed = append(result.Failed, id)
		}
	}
	return result, nil
}

func (s *Static) expects(id string) bool {
	for _, want := range s.ids {
		if want == id {
			return true
		}
	}
	return false
}

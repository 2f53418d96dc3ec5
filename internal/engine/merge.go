package engine

import (
	"fmt"

	"github.com/shaiso/varflow/internal/domain"
)

// DefaultMergeThreads — количество потоков инструмента слияния.
const DefaultMergeThreads = 3

// MergeStrategy — решение, как получить один файл на группу.
// Реализации: Symlink и MergeCommand.
type MergeStrategy interface {
	// Kind — тип узла графа, реализующего стратегию.
	Kind() domain.TaskKind

	// OutputPath — путь результата.
	OutputPath() string
}

// Symlink — группа из одного файла: ссылка на него без вызова инструмента.
type Symlink struct {
	// Target — точный путь единственного участника.
	Target string `json:"target"`

	// Link — путь создаваемой ссылки.
	Link string `json:"link"`
}

// Kind реализует MergeStrategy.
func (Symlink) Kind() domain.TaskKind { return domain.KindSymlink }

// OutputPath реализует MergeStrategy.
func (s Symlink) OutputPath() string { return s.Link }

// MergeCommand — слияние нескольких файлов группы.
type MergeCommand struct {
	// Files — пути участников в исходном порядке.
	Files []string `json:"files"`

	// Output — путь результата слияния.
	Output string `json:"output"`

	// Threads — количество потоков.
	Threads int `json:"threads"`
}

// Kind реализует MergeStrategy.
func (MergeCommand) Kind() domain.TaskKind { return domain.KindMerge }

// OutputPath реализует MergeStrategy.
func (m MergeCommand) OutputPath() string { return m.Output }

// DecideMergeStrategy выбирает стратегию для группы.
//
// Один участник — Symlink на его путь, больше одного — MergeCommand.
// Пустая группа — ошибка: GroupBy таких не создаёт.
func DecideMergeStrategy(group domain.Group, outputName string) (MergeStrategy, error) {
	switch {
	case group.MemberCount == 0 || len(group.Members) == 0:
		return nil, fmt.Errorf("group %s: %w", group.GroupKey, ErrEmptyGroup)

	case group.MemberCount == 1:
		return Symlink{Target: group.Members[0].SourceFile, Link: outputName}, nil

	default:
		return MergeCommand{
			Files:   group.Files(),
			Output:  outputName,
			Threads: DefaultMergeThreads,
		}, nil
	}
}

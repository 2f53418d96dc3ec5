package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Каталоги проекта.
const (
	DirLogs        = "00_logs"
	DirValid       = "30_eva_valid"
	DirTransformed = "40_transformed"
	DirStats       = "50_stats"
	DirAnnotation  = "51_annotation"
	DirAccessions  = "52_accessions"
	DirPublic      = "60_eva_public"
)

// Layout — раскладка каталога проекта.
//
// Public() — одновременно каталог записи accession и каталог
// наблюдения watch-gate: обе стороны берут путь отсюда.
type Layout struct {
	Root string
}

// NewLayout создаёт раскладку с абсолютным корнем.
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve project dir: %w", err)
	}
	return Layout{Root: abs}, nil
}

func (l Layout) Logs() string        { return filepath.Join(l.Root, DirLogs) }
func (l Layout) Valid() string       { return filepath.Join(l.Root, DirValid) }
func (l Layout) Transformed() string { return filepath.Join(l.Root, DirTransformed) }
func (l Layout) Stats() string       { return filepath.Join(l.Root, DirStats) }
func (l Layout) Annotation() string  { return filepath.Join(l.Root, DirAnnotation) }
func (l Layout) Accessions() string  { return filepath.Join(l.Root, DirAccessions) }
func (l Layout) Public() string      { return filepath.Join(l.Root, DirPublic) }

// Dirs возвращает все каталоги раскладки.
func (l Layout) Dirs() []string {
	return []string{
		l.Logs(), l.Valid(), l.Transformed(), l.Stats(),
		l.Annotation(), l.Accessions(), l.Public(),
	}
}

// Ensure создаёт недостающие каталоги.
func (l Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

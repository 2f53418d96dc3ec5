package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/validate"
)

// Колонки таблицы.
const (
	ColVCFFile           = "vcf_file"
	ColFasta             = "fasta"
	ColAnalysisAccession = "analysis_accession"
	ColDBName            = "db_name"
	ColVEPVersion        = "vep_version"
	ColVEPCacheVersion   = "vep_cache_version"
	ColVEPSpecies        = "vep_species"
	ColAggregation       = "aggregation"
)

// RequiredColumns — колонки, которые обязаны быть в заголовке.
var RequiredColumns = []string{
	ColVCFFile, ColFasta, ColAnalysisAccession, ColDBName,
	ColVEPVersion, ColVEPCacheVersion, ColVEPSpecies, ColAggregation,
}

// Row — строка таблицы до преобразования в WorkItem.
type Row struct {
	VCFFile           string `csv:"vcf_file" validate:"required"`
	Fasta             string `csv:"fasta" validate:"required"`
	AnalysisAccession string `csv:"analysis_accession" validate:"required"`
	DBName            string `csv:"db_name" validate:"required"`
	VEPVersion        string `csv:"vep_version"`
	VEPCacheVersion   string `csv:"vep_cache_version"`
	VEPSpecies        string `csv:"vep_species"`
	Aggregation       string `csv:"aggregation"`
}

// ReadFile читает таблицу из файла.
// Относительные пути разрешаются от каталога файла.
func ReadFile(path string) ([]domain.WorkItem, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sheet path: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open sheet: %w", err)
	}
	defer f.Close()

	return Read(f, filepath.Dir(abs))
}

// Read читает таблицу из r. baseDir — каталог для относительных путей.
//
// Ошибки структуры (нет заголовка, нет колонок, битый CSV) возвращаются
// без строк. Невалидные строки исключаются, а их ошибки (*RowError)
// объединяются через errors.Join; валидные строки возвращаются.
func Read(r io.Reader, baseDir string) ([]domain.WorkItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	header, _, _ := bytes.Cut(data, []byte("\n"))
	if len(bytes.TrimSpace(header)) == 0 {
		return nil, ErrEmptySheet
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(header)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptySheet
	}

	columns, err := indexColumns(records[0])
	if err != nil {
		return nil, err
	}

	items := make([]domain.WorkItem, 0, len(records)-1)
	var errs []error
	for i, record := range records[1:] {
		rowNum := i + 1
		row := rowFromRecord(record, columns)

		if err := validate.Struct(row); err != nil {
			errs = append(errs, &RowError{Row: rowNum, Err: err})
			continue
		}

		items = append(items, toWorkItem(rowNum, row, baseDir))
	}

	return items, errors.Join(errs...)
}

// detectDelimiter — табуляция, если она есть в заголовке, иначе запятая.
func detectDelimiter(header []byte) rune {
	if bytes.IndexByte(header, '\t') >= 0 {
		return '\t'
	}
	return ','
}

// indexColumns строит индекс колонок и проверяет обязательные.
func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return columns, nil
}

func rowFromRecord(record []string, columns map[string]int) Row {
	get := func(col string) string {
		i := columns[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	return Row{
		VCFFile:           get(ColVCFFile),
		Fasta:             get(ColFasta),
		AnalysisAccession: get(ColAnalysisAccession),
		DBName:            get(ColDBName),
		VEPVersion:        get(ColVEPVersion),
		VEPCacheVersion:   get(ColVEPCacheVersion),
		VEPSpecies:        get(ColVEPSpecies),
		Aggregation:       get(ColAggregation),
	}
}

func toWorkItem(rowNum int, row Row, baseDir string) domain.WorkItem {
	return domain.WorkItem{
		Row:                    rowNum,
		SourceFile:             resolve(baseDir, row.VCFFile),
		ReferenceFile:          resolve(baseDir, row.Fasta),
		GroupKey:               row.AnalysisAccession,
		DatabaseName:           row.DBName,
		AnnotationVersion:      row.VEPVersion,
		AnnotationCacheVersion: row.VEPCacheVersion,
		AnnotationSpecies:      NormalizeSpecies(row.VEPSpecies),
		AggregationMode:        domain.AggregationMode(strings.ToLower(row.Aggregation)),
	}
}

// resolve делает путь абсолютным относительно baseDir и очищает его.
func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

// NormalizeSpecies приводит научное имя вида к формату кэша VEP:
// "Homo sapiens" → "homo_sapiens".
func NormalizeSpecies(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

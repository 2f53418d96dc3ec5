package cli

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/sheet"
)

// classifiedRow — строка таблицы с классом маршрутизации.
type classifiedRow struct {
	Row         int    `json:"row"`
	File        string `json:"file"`
	Group       string `json:"group"`
	Aggregation string `json:"aggregation"`
	Class       string `json:"class"`
}

// groupRow — группа и выбранная стратегия слияния.
type groupRow struct {
	Group    string   `json:"group"`
	Members  int      `json:"members"`
	Strategy string   `json:"strategy"`
	Files    []string `json:"files"`
}

// classifyResult — JSON-вывод команды classify.
type classifyResult struct {
	Rows   []classifiedRow `json:"rows"`
	Groups []groupRow      `json:"groups,omitempty"`
	Errors []string        `json:"errors,omitempty"`
}

// NewClassifyCmd создаёт команду классификации строк таблицы метаданных.
func NewClassifyCmd(outputFn func() *Output) *cobra.Command {
	var showGroups bool

	cmd := &cobra.Command{
		Use:   "classify SHEET",
		Short: "Classify metadata sheet rows by aggregation mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			items, sheetErr := sheet.ReadFile(args[0])
			if len(items) == 0 && sheetErr != nil {
				return sheetErr
			}

			result := classifySheet(items, sheetErr, showGroups)
			for _, msg := range result.Errors {
				out.Error(msg)
			}

			if showGroups && !out.jsonMode {
				headers := []string{"GROUP", "MEMBERS", "STRATEGY", "FILES"}
				rows := make([][]string, len(result.Groups))
				for i, g := range result.Groups {
					rows[i] = []string{g.Group, strconv.Itoa(g.Members), g.Strategy, joinBase(g.Files)}
				}
				out.Table(headers, rows)
				return nil
			}

			headers := []string{"ROW", "FILE", "GROUP", "AGGREGATION", "CLASS"}
			rows := make([][]string, len(result.Rows))
			for i, r := range result.Rows {
				rows[i] = []string{strconv.Itoa(r.Row), r.File, r.Group, r.Aggregation, r.Class}
			}
			out.Print(headers, rows, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showGroups, "groups", false, "Show groups and the merge strategy of each")

	return cmd
}

// classifySheet классифицирует строки и, по запросу, группирует принятые.
func classifySheet(items []domain.WorkItem, sheetErr error, withGroups bool) classifyResult {
	var result classifyResult
	if sheetErr != nil {
		result.Errors = append(result.Errors, sheetErr.Error())
	}

	partition, errs := engine.Classify(items, engine.DefaultClasses())
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}

	classOf := make(map[int]string, partition.Count())
	var accepted []domain.WorkItem
	for class, rows := range partition {
		for _, item := range rows {
			classOf[item.Row] = class
		}
	}
	for _, item := range items {
		class, ok := classOf[item.Row]
		if !ok {
			continue
		}
		accepted = append(accepted, item)
		result.Rows = append(result.Rows, classifiedRow{
			Row:         item.Row,
			File:        item.SourceFile,
			Group:       item.GroupKey,
			Aggregation: string(item.AggregationMode),
			Class:       class,
		})
	}

	if !withGroups {
		return result
	}

	groups, err := engine.GroupBy(accepted, engine.ByGroupKey)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	for _, g := range groups {
		strategy, err := engine.DecideMergeStrategy(g, g.GroupKey+".vcf.gz")
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Groups = append(result.Groups, groupRow{
			Group:    g.GroupKey,
			Members:  g.MemberCount,
			Strategy: string(strategy.Kind()),
			Files:    g.Files(),
		})
	}
	return result
}

// joinBase перечисляет имена файлов без каталогов.
func joinBase(files []string) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	return strings.Join(names, ",")
}

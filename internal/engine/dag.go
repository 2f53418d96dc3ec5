package engine

import (
	"fmt"

	"github.com/shaiso/varflow/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Task — определение узла из PipelineSpec.
	Task *domain.TaskDef

	// ID — идентификатор узла.
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node

	// index — позиция в PipelineSpec.Tasks, для детерминированного обхода.
	index int
}

// IsGate возвращает true для узлов синхронизации.
func (n *Node) IsGate() bool {
	return n.Task.Kind.IsGate()
}

// DAG — направленный ациклический граф конвейера.
type DAG struct {
	// Nodes — все узлы графа (taskID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа), в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из PipelineSpec.
//
// Fan-in выражается явными gate-узлами: static-gate зависит от всех
// ожидаемых узлов, watch-gate зависит от узлов, после которых
// начинается наблюдение.
func BuildDAG(spec *domain.PipelineSpec) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(spec.Tasks)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		if _, exists := dag.Nodes[task.ID]; exists {
			return nil, NewValidationError(task.ID, "id",
				fmt.Sprintf("duplicate task ID: %s", task.ID), ErrDuplicateTaskID)
		}
		dag.Nodes[task.ID] = &Node{
			Task:       task,
			ID:         task.ID,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
			index:      i,
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		node := dag.Nodes[task.ID]

		for _, depID := range task.DependsOn {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				return nil, NewValidationError(task.ID, "depends_on",
					fmt.Sprintf("depends on unknown task: %s", depID), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	dag.findRootNodes(spec)

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes(spec *domain.PipelineSpec) {
	d.RootNodes = make([]*Node, 0)
	for i := range spec.Tasks {
		node := d.Nodes[spec.Tasks[i].ID]
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetReadyNodes возвращает узлы, готовые к выполнению, в топологическом порядке.
//
// Узел готов, если:
// - Все его зависимости успешно завершены (в completed)
// - Сам узел ещё не завершён и не в процессе
//
// done — узлы в любом терминальном статусе (включая FAILED и SKIPPED).
func (d *DAG) GetReadyNodes(completed, running, done map[string]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Order {
		if completed[node.ID] || running[node.ID] || done[node.ID] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if !completed[dep.ID] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// GetGateNodes возвращает gate-узлы в топологическом порядке.
func (d *DAG) GetGateNodes() []*Node {
	nodes := make([]*Node, 0)
	for _, node := range d.Order {
		if node.IsGate() {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// IsComplete проверяет, все ли узлы в терминальном статусе.
func (d *DAG) IsComplete(done map[string]bool) bool {
	for id := range d.Nodes {
		if !done[id] {
			return false
		}
	}
	return true
}

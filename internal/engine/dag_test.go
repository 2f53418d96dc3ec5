package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/varflow/internal/domain"
)

func TestBuildDAG_SimpleChain(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "A", Kind: domain.KindMerge},
			{ID: "B", Kind: domain.KindWriteConfig, DependsOn: []string{"A"}},
			{ID: "C", Kind: domain.KindLoad, DependsOn: []string{"B"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}

	if len(dag.RootNodes) != 1 {
		t.Errorf("expected 1 root node, got %d", len(dag.RootNodes))
	}
	if dag.RootNodes[0].ID != "A" {
		t.Errorf("expected root node A, got %s", dag.RootNodes[0].ID)
	}

	nodeB := dag.GetNode("B")
	if len(nodeB.DependsOn) != 1 || nodeB.DependsOn[0].ID != "A" {
		t.Error("node B should depend on A")
	}

	nodeC := dag.GetNode("C")
	if len(nodeC.DependsOn) != 1 || nodeC.DependsOn[0].ID != "B" {
		t.Error("node C should depend on B")
	}
}

func TestBuildDAG_FanIn(t *testing.T) {
	// load.a ┐
	// load.b ┼→ gate → summary
	// load.c ┘
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "load.a", Kind: domain.KindLoad},
			{ID: "load.b", Kind: domain.KindLoad},
			{ID: "load.c", Kind: domain.KindLoad},
			{ID: "gate", Kind: domain.KindStaticGate, DependsOn: []string{"load.a", "load.b", "load.c"}},
			{ID: "summary", Kind: domain.KindSummary, DependsOn: []string{"gate"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gate := dag.GetNode("gate")
	if gate.InDegree != 3 {
		t.Errorf("gate should have inDegree 3, got %d", gate.InDegree)
	}
	if !gate.IsGate() {
		t.Error("gate should be a gate node")
	}

	gates := dag.GetGateNodes()
	if len(gates) != 1 || gates[0].ID != "gate" {
		t.Errorf("expected [gate], got %v", gates)
	}

	// Корни в порядке объявления
	want := []string{"load.a", "load.b", "load.c"}
	for i, node := range dag.RootNodes {
		if node.ID != want[i] {
			t.Errorf("root %d: expected %s, got %s", i, want[i], node.ID)
		}
	}
}

func TestBuildDAG_CyclicDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "A", Kind: domain.KindLoad, DependsOn: []string{"C"}},
			{ID: "B", Kind: domain.KindLoad, DependsOn: []string{"A"}},
			{ID: "C", Kind: domain.KindLoad, DependsOn: []string{"B"}},
		},
	}

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestBuildDAG_MissingDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "A", Kind: domain.KindLoad, DependsOn: []string{"ghost"}},
		},
	}

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}
}

func TestGetReadyNodes(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "A", Kind: domain.KindMerge},
			{ID: "B", Kind: domain.KindSymlink},
			{ID: "C", Kind: domain.KindLoad, DependsOn: []string{"A"}},
			{ID: "D", Kind: domain.KindStaticGate, DependsOn: []string{"A", "B"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := dag.GetReadyNodes(nil, nil, nil)
	if len(ready) != 2 || ready[0].ID != "A" || ready[1].ID != "B" {
		t.Errorf("expected [A B] ready initially, got %v", nodeIDs(ready))
	}

	completed := map[string]bool{"A": true}
	done := map[string]bool{"A": true}
	ready = dag.GetReadyNodes(completed, nil, done)
	ids := toSet(ready)
	if !ids["B"] || !ids["C"] {
		t.Error("B and C should be ready after A completes")
	}
	if ids["D"] {
		t.Error("D should not be ready (depends on B)")
	}

	// B упал: D не готов, хотя B в терминальном статусе
	done["B"] = true
	ready = dag.GetReadyNodes(completed, nil, done)
	ids = toSet(ready)
	if ids["D"] {
		t.Error("D should not be ready when B failed")
	}
	if ids["B"] {
		t.Error("B is done and should not be ready")
	}
}

func TestGetReadyNodes_WithRunning(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "A", Kind: domain.KindLoad},
			{ID: "B", Kind: domain.KindLoad},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	running := map[string]bool{"A": true}
	ready := dag.GetReadyNodes(nil, running, nil)

	if len(ready) != 1 {
		t.Fatalf("expected 1 ready node, got %d", len(ready))
	}
	if ready[0].ID != "B" {
		t.Errorf("expected B to be ready, got %s", ready[0].ID)
	}
}

func TestTopologicalSort(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "D", Kind: domain.KindSummary, DependsOn: []string{"B", "C"}},
			{ID: "B", Kind: domain.KindLoad, DependsOn: []string{"A"}},
			{ID: "C", Kind: domain.KindLoad, DependsOn: []string{"A"}},
			{ID: "A", Kind: domain.KindMerge},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	position := make(map[string]int)
	for i, node := range dag.Order {
		position[node.ID] = i
	}

	if position["A"] > position["B"] || position["A"] > position["C"] {
		t.Error("A should come before B and C")
	}
	if position["B"] > position["D"] || position["C"] > position["D"] {
		t.Error("B and C should come before D")
	}
}

func TestDAG_IsComplete(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "A", Kind: domain.KindLoad},
			{ID: "B", Kind: domain.KindLoad, DependsOn: []string{"A"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.IsComplete(map[string]bool{"A": true}) {
		t.Error("DAG should not be complete")
	}
	if !dag.IsComplete(map[string]bool{"A": true, "B": true}) {
		t.Error("DAG should be complete")
	}
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func toSet(nodes []*Node) map[string]bool {
	set := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		set[n.ID] = true
	}
	return set
}

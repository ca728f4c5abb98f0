package forge

import "testing"

func idx(nodes []DepNode, name string) int {
	for i, n := range nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

func TestOrderLinearChain(t *testing.T) {
	nodes := []DepNode{
		{Name: "app", Version: "3", Depends: []string{"bar"}},
		{Name: "bar", Version: "2", Depends: []string{"libfoo"}},
		{Name: "libfoo", Version: "1"},
	}
	ordered, acyclic := Order(nodes)
	if !acyclic {
		t.Fatalf("expected acyclic order")
	}
	if len(ordered) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(ordered))
	}
	if idx(ordered, "libfoo") > idx(ordered, "bar") {
		t.Fatalf("libfoo must precede bar")
	}
	if idx(ordered, "bar") > idx(ordered, "app") {
		t.Fatalf("bar must precede app")
	}
}

func TestOrderNoDependenciesStillAppears(t *testing.T) {
	nodes := []DepNode{{Name: "standalone", Version: "1"}}
	ordered, acyclic := Order(nodes)
	if !acyclic || len(ordered) != 1 || ordered[0].Name != "standalone" {
		t.Fatalf("expected standalone node to appear exactly once, got %+v", ordered)
	}
}

func TestOrderToleratesMissingDependency(t *testing.T) {
	nodes := []DepNode{{Name: "app", Version: "1", Depends: []string{"nonexistent"}}}
	ordered, acyclic := Order(nodes)
	if !acyclic {
		t.Fatalf("missing dependency should not be treated as a cycle")
	}
	if len(ordered) != 1 {
		t.Fatalf("expected the node to still appear, got %+v", ordered)
	}
}

func TestOrderCycleToleratesBothNodesPresent(t *testing.T) {
	nodes := []DepNode{
		{Name: "A", Version: "1", Depends: []string{"B"}},
		{Name: "B", Version: "1", Depends: []string{"A"}},
	}
	ordered, acyclic := Order(nodes)
	if acyclic {
		t.Fatalf("expected a cycle to be detected")
	}
	if len(ordered) != 2 {
		t.Fatalf("expected both cyclic nodes to appear, got %+v", ordered)
	}
	names := map[string]bool{ordered[0].Name: true, ordered[1].Name: true}
	if !names["A"] || !names["B"] {
		t.Fatalf("expected both A and B in output, got %+v", ordered)
	}
}

func TestOrderInsertionOrderTieBreak(t *testing.T) {
	nodes := []DepNode{
		{Name: "z", Version: "1"},
		{Name: "a", Version: "1"},
		{Name: "m", Version: "1"},
	}
	ordered, acyclic := Order(nodes)
	if !acyclic {
		t.Fatalf("expected acyclic order")
	}
	if ordered[0].Name != "z" || ordered[1].Name != "a" || ordered[2].Name != "m" {
		t.Fatalf("expected insertion order to be preserved for independent nodes, got %+v", ordered)
	}
}

package forge

// DepNode is one node in the dependency graph: a recipe directory plus
// its resolved identity and declared dependency names.
type DepNode struct {
	Dir     string
	Name    string
	Version string
	Depends []string
}

// Order runs Kahn's algorithm over nodes, returning a linear ordering
// in which every node appears after all of its resolved dependencies.
// Edges carry only names; when multiple nodes share a name (multiple
// versions of the same package in the input set) the first one
// encountered in nodes is treated as the edge target, per the Open
// Question resolution recorded in DESIGN.md. Nodes depending on names
// absent from the input set are tolerated — the edge is simply
// unsatisfiable and ignored. Remaining cyclic nodes are appended in
// their original order rather than blocking the result.
func Order(nodes []DepNode) ([]DepNode, bool) {
	byName := make(map[string]int, len(nodes)) // first index for each name
	for i, n := range nodes {
		if _, ok := byName[n.Name]; !ok {
			byName[n.Name] = i
		}
	}

	indegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes)) // i -> indices that depend on i

	for i, n := range nodes {
		seen := make(map[int]bool)
		for _, dep := range n.Depends {
			j, ok := byName[dep]
			if !ok || j == i || seen[j] {
				continue
			}
			seen[j] = true
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i := range nodes {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	var order []int
	visited := make([]bool, len(nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if visited[i] {
			continue
		}
		visited[i] = true
		order = append(order, i)
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	acyclic := len(order) == len(nodes)
	if !acyclic {
		// Cycle remains: append the rest in original insertion order
		// rather than refusing to proceed.
		for i := range nodes {
			if !visited[i] {
				order = append(order, i)
			}
		}
	}

	result := make([]DepNode, len(order))
	for i, idx := range order {
		result[i] = nodes[idx]
	}
	return result, acyclic
}

package stylometry

// unionFind is a disjoint-set forest over usernames with path compression
// and union by rank
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind(users []string) *unionFind {
	uf := &unionFind{
		parent: make(map[string]string, len(users)),
		rank:   make(map[string]int, len(users)),
	}
	for _, u := range users {
		uf.parent[u] = u
	}
	return uf
}

func (uf *unionFind) find(u string) string {
	root := u
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[u] != root {
		uf.parent[u], u = root, uf.parent[u]
	}
	return root
}

func (uf *unionFind) union(a, b string) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

package stylometry

import "sort"

// DefaultThreshold links users whose cosine similarity reaches this value
const DefaultThreshold = 0.6

// Ranked is a similar username with its pairwise similarity
type Ranked struct {
	Username   string
	Similarity float64
}

// Group is a maximal set of transitively linked users
type Group struct {
	Members       []string // sorted
	MaxSimilarity float64  // max pairwise similarity inside the group
}

// Result is the full analysis output for one channel and date filter
type Result struct {
	// Groups holds every multi-member component, largest first
	Groups []Group

	// MaxSim maps each vectorized user to the maximum similarity with any
	// other member of its group, 0 when the user stands alone
	MaxSim map[string]float64

	// Similar maps each user to the other members of its group ordered by
	// descending pairwise similarity
	Similar map[string][]Ranked
}

// crossExcluded reports whether any member of one component is excluded
// against any member of the other
func crossExcluded(xs, ys []string, excluded func(a, b string) bool) bool {
	for _, x := range xs {
		for _, y := range ys {
			if excluded(x, y) {
				return true
			}
		}
	}
	return false
}

type pairKey struct{ a, b string }

func keyOf(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

type edge struct {
	a, b string
	sim  float64
}

// Analyze vectorizes the corpora, computes pairwise cosine similarity, and
// forms groups via union-find over qualifying edges
//
// An edge qualifies when similarity >= threshold and excluded(a, b) is false;
// a user may join a group transitively without clearing the threshold against
// every member. Exclusion holds at the component level: a merge that would put
// an excluded pair into one group is rejected, even when the two sides are
// only linked through a third user. Edges merge strongest first so the
// rejection falls on the weaker link. Fewer than two vectorized users yields
// no groups and all-zero scores
func Analyze(tokens map[string][]string, threshold float64, excluded func(a, b string) bool) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if excluded == nil {
		excluded = func(string, string) bool { return false }
	}

	vectors := Vectorize(tokens)
	users := make([]string, 0, len(vectors))
	for u := range vectors {
		users = append(users, u)
	}
	sort.Strings(users)

	res := Result{
		MaxSim:  make(map[string]float64, len(users)),
		Similar: make(map[string][]Ranked, len(users)),
	}
	for _, u := range users {
		res.MaxSim[u] = 0
	}
	if len(users) < 2 {
		return res
	}

	sims := make(map[pairKey]float64)
	var edges []edge
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			a, b := users[i], users[j]
			s := Cosine(vectors[a], vectors[b])
			sims[keyOf(a, b)] = s
			if s >= threshold && !excluded(a, b) {
				edges = append(edges, edge{a: a, b: b, sim: s})
			}
		}
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].sim != edges[j].sim {
			return edges[i].sim > edges[j].sim
		}
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})

	uf := newUnionFind(users)
	membersOf := make(map[string][]string, len(users))
	for _, u := range users {
		membersOf[u] = []string{u}
	}
	for _, e := range edges {
		ra, rb := uf.find(e.a), uf.find(e.b)
		if ra == rb || crossExcluded(membersOf[ra], membersOf[rb], excluded) {
			continue
		}
		uf.union(ra, rb)
		root, other := uf.find(ra), ra
		if root == ra {
			other = rb
		}
		membersOf[root] = append(membersOf[root], membersOf[other]...)
		delete(membersOf, other)
	}

	// collect components
	components := make(map[string][]string)
	for _, u := range users {
		root := uf.find(u)
		components[root] = append(components[root], u)
	}

	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)

		g := Group{Members: members}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				s := sims[keyOf(members[i], members[j])]
				if s > g.MaxSimilarity {
					g.MaxSimilarity = s
				}
			}
		}
		res.Groups = append(res.Groups, g)

		for _, u := range members {
			var ranked []Ranked
			for _, other := range members {
				if other == u {
					continue
				}
				s := sims[keyOf(u, other)]
				ranked = append(ranked, Ranked{Username: other, Similarity: s})
				if s > res.MaxSim[u] {
					res.MaxSim[u] = s
				}
			}
			sort.SliceStable(ranked, func(i, j int) bool {
				if ranked[i].Similarity != ranked[j].Similarity {
					return ranked[i].Similarity > ranked[j].Similarity
				}
				return ranked[i].Username < ranked[j].Username
			})
			res.Similar[u] = ranked
		}
	}

	sort.SliceStable(res.Groups, func(i, j int) bool {
		if len(res.Groups[i].Members) != len(res.Groups[j].Members) {
			return len(res.Groups[i].Members) > len(res.Groups[j].Members)
		}
		return res.Groups[i].Members[0] < res.Groups[j].Members[0]
	})
	return res
}

package nav

import (
	"container/heap"

	"blocksworld.ai/internal/protocol"
)

// Fixed neighbour order keeps paths deterministic.
var steps = []struct {
	d      protocol.Loc
	action string
}{
	{protocol.Loc{0, -1}, protocol.ActMoveNorth},
	{protocol.Loc{1, 0}, protocol.ActMoveEast},
	{protocol.Loc{0, 1}, protocol.ActMoveSouth},
	{protocol.Loc{-1, 0}, protocol.ActMoveWest},
}

func manhattan(a, b protocol.Loc) int {
	dx := a[0] - b[0]
	if dx < 0 {
		dx = -dx
	}
	dy := a[1] - b[1]
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// AStar returns the tiles from start (exclusive) to goal (inclusive), or nil
// when goal cannot be reached. start itself is never tested for passability.
func AStar(start, goal protocol.Loc, passable func(protocol.Loc) bool) []protocol.Loc {
	if start == goal {
		return []protocol.Loc{}
	}
	if !passable(goal) {
		return nil
	}

	open := &frontier{}
	heap.Init(open)
	var seq int
	push := func(l protocol.Loc, g int) {
		seq++
		heap.Push(open, &node{loc: l, g: g, f: g + manhattan(l, goal), seq: seq})
	}

	cameFrom := map[protocol.Loc]protocol.Loc{}
	gScore := map[protocol.Loc]int{start: 0}
	push(start, 0)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.g > gScore[cur.loc] {
			continue // stale entry
		}
		if cur.loc == goal {
			return rebuild(cameFrom, start, goal)
		}
		for _, st := range steps {
			next := protocol.Loc{cur.loc[0] + st.d[0], cur.loc[1] + st.d[1]}
			if !passable(next) {
				continue
			}
			g := cur.g + 1
			if old, ok := gScore[next]; ok && g >= old {
				continue
			}
			gScore[next] = g
			cameFrom[next] = cur.loc
			push(next, g)
		}
	}
	return nil
}

func rebuild(cameFrom map[protocol.Loc]protocol.Loc, start, goal protocol.Loc) []protocol.Loc {
	var rev []protocol.Loc
	for cur := goal; cur != start; cur = cameFrom[cur] {
		rev = append(rev, cur)
	}
	out := make([]protocol.Loc, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// MoveToward names the single-tile move from a to an adjacent tile b.
func MoveToward(a, b protocol.Loc) string {
	d := protocol.Loc{b[0] - a[0], b[1] - a[1]}
	for _, st := range steps {
		if st.d == d {
			return st.action
		}
	}
	return ""
}

// Delta is the inverse of MoveToward.
func Delta(action string) (protocol.Loc, bool) {
	for _, st := range steps {
		if st.action == action {
			return st.d, true
		}
	}
	return protocol.Loc{}, false
}

type node struct {
	loc   protocol.Loc
	g, f  int
	seq   int
	index int
}

// frontier is a min-heap on f, then h (via larger g), then insertion order.
type frontier []*node

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].g != q[j].g {
		return q[i].g > q[j].g
	}
	return q[i].seq < q[j].seq
}
func (q frontier) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *frontier) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}
func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

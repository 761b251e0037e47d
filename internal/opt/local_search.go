package opt

// search applies first-improvement moves until none improves or the budget
// runs out. Every applied move strictly decreases total cost and keeps every
// route within capacity.
type search struct {
	p      *Problem
	routes [][]int
	loads  []int64
	b      *budget
	moves  int
}

func newSearch(p *Problem, routes [][]int, b *budget) *search {
	s := &search{p: p, routes: routes, loads: make([]int64, len(routes)), b: b}
	for v, r := range routes {
		s.loads[v] = routeLoad(p, r)
	}
	return s
}

func (s *search) run() {
	for s.b.ok() {
		if !(s.moveSegment(1) || s.exchange() || s.moveSegment(2) || s.moveSegment(3) || s.twoOpt()) {
			return
		}
		s.moves++
		s.b.spend()
	}
}

// moveSegment relocates a run of l consecutive stops to another position in
// the same or a different route. l == 1 is relocate, 2 and 3 are or-opt.
func (s *search) moveSegment(l int) bool {
	c := s.p.Cost
	for ra, r := range s.routes {
		for i := 0; i+l <= len(r); i++ {
			first, last := r[i], r[i+l-1]
			prev, next := at(r, i-1), at(r, i+l)
			gain := c[prev][first] + c[last][next] - c[prev][next]
			if gain <= 0 {
				continue
			}
			seg := r[i : i+l]
			segLoad := routeLoad(s.p, seg)
			var rest []int
			for rb := range s.routes {
				base := s.routes[rb]
				if rb == ra {
					if len(r) == l {
						continue // moving a whole route onto itself
					}
					if rest == nil {
						rest = make([]int, 0, len(r)-l)
						rest = append(rest, r[:i]...)
						rest = append(rest, r[i+l:]...)
					}
					base = rest
				} else if s.loads[rb]+segLoad > s.p.Capacity {
					continue
				}
				for j := 0; j <= len(base); j++ {
					if rb == ra && j == i {
						continue
					}
					a, b := at(base, j-1), at(base, j)
					add := c[a][first] + c[last][b] - c[a][b]
					if add-gain < 0 {
						s.applySegment(ra, i, l, rb, j, base)
						return true
					}
				}
			}
		}
	}
	return false
}

func (s *search) applySegment(ra, i, l, rb, j int, base []int) {
	seg := append([]int(nil), s.routes[ra][i:i+l]...)
	segLoad := routeLoad(s.p, seg)
	if ra == rb {
		out := make([]int, 0, len(base)+l)
		out = append(out, base[:j]...)
		out = append(out, seg...)
		out = append(out, base[j:]...)
		s.routes[ra] = out
		return
	}
	src := s.routes[ra]
	s.routes[ra] = append(append([]int(nil), src[:i]...), src[i+l:]...)
	dst := s.routes[rb]
	out := make([]int, 0, len(dst)+l)
	out = append(out, dst[:j]...)
	out = append(out, seg...)
	out = append(out, dst[j:]...)
	s.routes[rb] = out
	s.loads[ra] -= segLoad
	s.loads[rb] += segLoad
}

// exchange swaps two stops on different routes.
func (s *search) exchange() bool {
	c := s.p.Cost
	d := s.p.Demand
	for ra := 0; ra < len(s.routes); ra++ {
		A := s.routes[ra]
		for rb := ra + 1; rb < len(s.routes); rb++ {
			B := s.routes[rb]
			for i, x := range A {
				pa, na := at(A, i-1), at(A, i+1)
				for j, y := range B {
					if s.loads[ra]-d[x]+d[y] > s.p.Capacity || s.loads[rb]-d[y]+d[x] > s.p.Capacity {
						continue
					}
					pb, nb := at(B, j-1), at(B, j+1)
					delta := c[pa][y] + c[y][na] - c[pa][x] - c[x][na] +
						c[pb][x] + c[x][nb] - c[pb][y] - c[y][nb]
					if delta < 0 {
						A[i], B[j] = y, x
						s.loads[ra] += d[y] - d[x]
						s.loads[rb] += d[x] - d[y]
						return true
					}
				}
			}
		}
	}
	return false
}

// twoOpt reverses a segment within one route. The matrix is symmetric, so
// only the two boundary arcs change.
func (s *search) twoOpt() bool {
	c := s.p.Cost
	for _, r := range s.routes {
		for i := 0; i < len(r)-1; i++ {
			a := at(r, i-1)
			for k := i + 1; k < len(r); k++ {
				b := at(r, k+1)
				delta := c[a][r[k]] + c[r[i]][b] - c[a][r[i]] - c[r[k]][b]
				if delta < 0 {
					for x, y := i, k; x < y; x, y = x+1, y-1 {
						r[x], r[y] = r[y], r[x]
					}
					return true
				}
			}
		}
	}
	return false
}

// improve runs local search over routes in place and returns the number of
// moves applied.
func improve(p *Problem, routes [][]int, b *budget) int {
	s := newSearch(p, routes, b)
	s.run()
	return s.moves
}

package opt

// Stop is one visited order: its node index, the vehicle slot serving it and
// its 1-based position on that route.
type Stop struct {
	Node int
	Slot int
	Seq  int
}

// Extract walks used vehicle slots in order, skipping the depot. Unused
// slots produce nothing.
func Extract(s *Solution) []Stop {
	if s == nil {
		return nil
	}
	var out []Stop
	for slot, r := range s.Routes {
		seq := 0
		for _, node := range r {
			if node == 0 {
				continue
			}
			seq++
			out = append(out, Stop{Node: node, Slot: slot, Seq: seq})
		}
	}
	return out
}

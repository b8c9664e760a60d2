package catalog

// Hit is a single ranked search hit.
type Hit struct {
	Position int
	Distance float32
	Record   Record
}

// Result is an ordered sequence of hits, ascending by distance.
type Result []Hit

// Records returns the matched records in ranked order.
func (r Result) Records() []Record {
	out := make([]Record, len(r))
	for i, h := range r {
		out[i] = h.Record
	}
	return out
}

// Descriptions returns the matched descriptions in ranked order.
func (r Result) Descriptions() []string {
	out := make([]string, len(r))
	for i, h := range r {
		out[i] = h.Record.Description()
	}
	return out
}

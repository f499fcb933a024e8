package extract

// Entry is a file written to the destination directory.
type Entry struct {
	// Path is slash-separated and relative to the destination directory.
	Path  string
	Size  int64
	Index int
}

// Rejection records an entry that was skipped by the path guard.
type Rejection struct {
	Path   string
	Reason string
}

// Result lists what an extraction produced, in archive order.
type Result struct {
	Format   Format
	Entries  []Entry
	Rejected []Rejection

	seen map[string]int
}

// Add records an extracted entry. A later entry with the same path replaces
// the earlier one, matching the file left on disk.
func (r *Result) Add(path string, size int64, index int) {
	if r.seen == nil {
		r.seen = make(map[string]int)
	}
	if pos, ok := r.seen[path]; ok {
		r.Entries[pos] = Entry{Path: path, Size: size, Index: index}
		return
	}
	r.seen[path] = len(r.Entries)
	r.Entries = append(r.Entries, Entry{Path: path, Size: size, Index: index})
}

// Reject records an unsafe entry.
func (r *Result) Reject(path string, reason error) {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	r.Rejected = append(r.Rejected, Rejection{Path: path, Reason: msg})
}

package cache

import "sync"

// File is one tracked input of a unit
type File struct {
	// Path is the absolute path of the input file
	Path string

	// ModTime is the last-modified instant in nanoseconds since the Unix epoch
	ModTime int64
}

// Record is the staleness witness for one unit.
// An empty record is valid and never stale by content.
type Record struct {
	Files []File
}

// Equal reports whether both records track the same files, in order, with the same timestamps
func (r Record) Equal(other Record) bool {
	if len(r.Files) != len(other.Files) {
		return false
	}

	for i := range r.Files {
		if r.Files[i] != other.Files[i] {
			return false
		}
	}

	return true
}

// Records maps unit names to their records
type Records map[string]Record

// Has reports whether a unit name has a record
func (r Records) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Snapshot is the output cache of a run.
// Workers only ever insert their own unit's entry; the map itself is never handed out
// until the run is over.
type Snapshot struct {
	mu      sync.Mutex
	records Records
}

// NewSnapshot creates an empty output cache
func NewSnapshot() *Snapshot {
	return &Snapshot{records: Records{}}
}

// Put stores or replaces the record for a unit
func (s *Snapshot) Put(name string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[name] = record
}

// Records returns a copy of the collected records
func (s *Snapshot) Records() Records {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(Records, len(s.records))
	for name, record := range s.records {
		out[name] = record
	}

	return out
}

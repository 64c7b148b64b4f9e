package linker

// Failure records one entry that could not be processed, with its cause.
// Failures never stop the walk; they are collected so the whole tree gets a
// chance and the caller can present every problem at once.
type Failure struct {
	Entry Entry
	Err   error
}

// Report aggregates one run. Every non-directory entry the walk reaches
// lands in exactly one of the six Files counters, so their sum equals the
// number of non-directory entries visited. Dry runs fill the report the
// same way a real run would.
type Report struct {
	DirsCreated  int64
	DirsExcluded int64
	DirsFailed   int64

	FilesLinked        int64
	FilesOverwritten   int64
	FilesAlreadyLinked int64
	FilesSkipped       int64
	FilesExcluded      int64
	FilesFailed        int64

	// BytesLinked is the total size of the source files behind newly
	// created links: the space a plain copy would have consumed.
	BytesLinked int64

	// Failures holds one record per failed entry, in walk order. Directory
	// failures appear here too.
	Failures []Failure
}

// FilesVisited is the number of non-directory entries the walk reached.
func (r *Report) FilesVisited() int64 {
	return r.FilesLinked + r.FilesOverwritten + r.FilesAlreadyLinked +
		r.FilesSkipped + r.FilesExcluded + r.FilesFailed
}

// HasFailures reports whether any entry could not be processed.
func (r *Report) HasFailures() bool {
	return len(r.Failures) > 0
}

package vfs

// WatchOptions configures a watch request.
type WatchOptions struct {
	Recursive bool     `json:"recursive"`
	Excludes  []string `json:"excludes"`
}

// WriteOptions configures WriteFile.
type WriteOptions struct {
	Create    bool `json:"create"`
	Overwrite bool `json:"overwrite"`
	Unlock    bool `json:"unlock"`
}

// OpenOptions configures Open. Create opens the file for writing.
type OpenOptions struct {
	Create bool `json:"create"`
	Unlock bool `json:"unlock"`
}

// DeleteOptions configures Delete.
type DeleteOptions struct {
	Recursive bool `json:"recursive"`
	UseTrash  bool `json:"useTrash"`
}

// OverwriteOptions configures Rename and Copy.
type OverwriteOptions struct {
	Overwrite bool `json:"overwrite"`
}

// ReadStreamOptions selects the byte range of a streaming read.
type ReadStreamOptions struct {
	// Position is the offset of the first byte.
	Position int64 `json:"position,omitempty"`
	// Length is the number of bytes to read; -1 reads to the end of file.
	Length int64 `json:"length"`
	// BufferSize is the preferred chunk size; zero lets the provider choose.
	BufferSize int `json:"bufferSize,omitempty"`
}

// WholeFile reads the entire resource.
var WholeFile = ReadStreamOptions{Length: -1}

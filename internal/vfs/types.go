package vfs

import (
	"fmt"
)

// FileType is a bit set describing what a resource is. A symbolic link to a
// directory is Directory|SymbolicLink.
type FileType int

const (
	FileTypeUnknown      FileType = 0
	FileTypeFile         FileType = 1
	FileTypeDirectory    FileType = 2
	FileTypeSymbolicLink FileType = 64
)

// IsDir reports whether the directory bit is set.
func (t FileType) IsDir() bool { return t&FileTypeDirectory != 0 }

// IsFile reports whether the file bit is set.
func (t FileType) IsFile() bool { return t&FileTypeFile != 0 }

// IsSymlink reports whether the symbolic link bit is set.
func (t FileType) IsSymlink() bool { return t&FileTypeSymbolicLink != 0 }

func (t FileType) String() string {
	switch {
	case t.IsDir() && t.IsSymlink():
		return "symlink-dir"
	case t.IsFile() && t.IsSymlink():
		return "symlink-file"
	case t.IsSymlink():
		return "symlink"
	case t.IsDir():
		return "directory"
	case t.IsFile():
		return "file"
	default:
		return "unknown"
	}
}

// FilePermission flags a resource's access restrictions.
type FilePermission int

// PermissionReadonly marks a resource that cannot be written.
const PermissionReadonly FilePermission = 1

// Stat describes a resource. Times are unix milliseconds.
type Stat struct {
	Type        FileType       `json:"type"`
	Ctime       int64          `json:"ctime"`
	Mtime       int64          `json:"mtime"`
	Size        int64          `json:"size"`
	Permissions FilePermission `json:"permissions,omitempty"`
}

// DirEntry is one element of a directory listing: a name and its type.
type DirEntry struct {
	Name string
	Type FileType
}

// MarshalJSON encodes the entry as the [name, type] tuple used on the wire.
func (e DirEntry) MarshalJSON() ([]byte, error) {
	return marshalTuple(e.Name, e.Type)
}

// UnmarshalJSON decodes the [name, type] tuple.
func (e *DirEntry) UnmarshalJSON(data []byte) error {
	if err := unmarshalTuple(data, &e.Name, &e.Type); err != nil {
		return fmt.Errorf("dir entry: %w", err)
	}
	return nil
}

// ChangeType is the kind of a file change. Values are the wire values.
type ChangeType int

const (
	ChangeUpdated ChangeType = 0
	ChangeAdded   ChangeType = 1
	ChangeDeleted ChangeType = 2
)

func (c ChangeType) String() string {
	switch c {
	case ChangeUpdated:
		return "updated"
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

// FileChange is one element of a change batch.
type FileChange struct {
	Resource URI        `json:"resource"`
	Type     ChangeType `json:"type"`
}

// ReviveChanges validates a batch received from a peer. Batch order is
// preserved.
func ReviveChanges(changes []FileChange) ([]FileChange, error) {
	out := make([]FileChange, 0, len(changes))
	for i, c := range changes {
		u, err := ReviveURI(c.Resource)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		if c.Type < ChangeUpdated || c.Type > ChangeDeleted {
			return nil, fmt.Errorf("change %d: invalid type %d", i, c.Type)
		}
		out = append(out, FileChange{Resource: u, Type: c.Type})
	}
	return out, nil
}

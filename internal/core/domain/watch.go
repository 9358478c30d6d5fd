package domain

// WatchKind is the kind of a filesystem change.
type WatchKind string

const (
	WatchAdd       WatchKind = "add"
	WatchChange    WatchKind = "change"
	WatchUnlink    WatchKind = "unlink"
	WatchAddDir    WatchKind = "addDir"
	WatchUnlinkDir WatchKind = "unlinkDir"
)

// IsDir reports whether the kind refers to a directory.
func (k WatchKind) IsDir() bool {
	return k == WatchAddDir || k == WatchUnlinkDir
}

// WatchEvent is a single filesystem change with an absolute path.
type WatchEvent struct {
	Kind WatchKind
	Path string
}

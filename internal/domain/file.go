package domain

// TrackedFile is a file discovered in the watched directory.
// Its identity is the absolute path.
type TrackedFile struct {
	// Path is the absolute path of the file
	Path string

	// Name is the base name sent to the remote store
	Name string

	// Size is the size observed by the last stability read
	Size int64

	// LastSize is the size observed by the read before that
	LastSize int64

	// Digest is the content fingerprint, empty until computed
	Digest string
}

// HasDigest reports whether a fingerprint has been attached
func (f TrackedFile) HasDigest() bool {
	return f.Digest != ""
}

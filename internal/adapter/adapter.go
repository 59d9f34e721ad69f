package adapter

import (
	"context"
	"fmt"

	"github.com/Ning0612/dedupwatch/internal/domain"
)

// HashUploader is the remote store's dedup ("instant") upload operation.
// Implementations own authentication and session handling; callers only
// see this contract.
type HashUploader interface {
	// UploadByHash offers a file to the store by digest and size only.
	// Transport and protocol failures are returned as errors wrapping
	// domain.ErrRemoteCall. A decoded response is returned even when the
	// store did not reuse an existing object.
	UploadByHash(ctx context.Context, req UploadByHashRequest) (*UploadByHashResponse, error)

	// Close releases any resources held by the uploader
	Close() error
}

// UploadByHashRequest carries everything the store needs to match a file
type UploadByHashRequest struct {
	Digest    string
	Size      int64
	Name      string
	ParentID  int64
	Overwrite bool
}

// UploadByHashResponse is the decoded reply of an upload-by-hash call
type UploadByHashResponse struct {
	// Code is the store's status code; CodeOK means the call was accepted
	Code    int
	Message string

	// Reuse is set when the store already held the content
	Reuse bool

	// FileID identifies the remote file when Reuse is set
	FileID int64

	// Raw is the undecoded response body, for logging
	Raw string
}

// CodeOK is the status code of an accepted upload-by-hash call
const CodeOK = 0

// Matched reports whether the store completed the upload by reference
func (r *UploadByHashResponse) Matched() bool {
	return r != nil && r.Code == CodeOK && r.Reuse
}

// Disabled is a HashUploader used when no credentials are configured
type Disabled struct{}

// UploadByHash always fails with domain.ErrRemoteDisabled
func (Disabled) UploadByHash(ctx context.Context, req UploadByHashRequest) (*UploadByHashResponse, error) {
	return nil, fmt.Errorf("%w: no credentials configured", domain.ErrRemoteDisabled)
}

// Close is a no-op
func (Disabled) Close() error { return nil }

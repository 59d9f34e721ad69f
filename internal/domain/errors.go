package domain

import "errors"

// Filesystem errors - local watched directory
var (
	// ErrNotFound indicates the requested path does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions or a path outside the root
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile indicates expected a file but got a directory
	ErrNotFile = errors.New("not a file")
)

// Per-file errors - none of these are fatal to the agent
var (
	// ErrFileVanished indicates the file disappeared while being processed
	ErrFileVanished = errors.New("file vanished")

	// ErrFileRead indicates an I/O failure while hashing
	ErrFileRead = errors.New("file read error")
)

// Remote errors
var (
	// ErrRemoteCall indicates a transport or protocol failure talking to the store
	ErrRemoteCall = errors.New("remote call failed")

	// ErrRemoteDisabled indicates uploads are disabled (no credentials configured)
	ErrRemoteDisabled = errors.New("remote upload disabled")

	// ErrAuthFailed indicates the store rejected the configured credentials
	ErrAuthFailed = errors.New("authentication failed")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config values are malformed
	ErrConfigInvalid = errors.New("invalid config")
)

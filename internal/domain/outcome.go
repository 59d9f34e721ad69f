package domain

import "fmt"

// Verdict is the result of a stability check
type Verdict int

const (
	// Stable means two consecutive size reads were equal
	Stable Verdict = iota
	// SizeUnstable means the size kept changing for every attempt
	SizeUnstable
	// FileVanished means the file disappeared during the check
	FileVanished
)

func (v Verdict) String() string {
	switch v {
	case Stable:
		return "stable"
	case SizeUnstable:
		return "size_unstable"
	case FileVanished:
		return "vanished"
	default:
		return "unknown"
	}
}

// OutcomeKind classifies a single upload attempt
type OutcomeKind int

const (
	OutcomeMatched OutcomeKind = iota
	OutcomeNotMatched
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeNotMatched:
		return "not_matched"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is produced once per upload attempt and only drives the next action.
// It is never persisted.
type Outcome struct {
	Kind OutcomeKind

	// RemoteFileID is set for OutcomeMatched
	RemoteFileID string

	// Raw is the raw response body for OutcomeNotMatched
	Raw string

	// Err is the cause for OutcomeError
	Err error
}

// Matched builds a successful dedup outcome
func Matched(remoteFileID string) Outcome {
	return Outcome{Kind: OutcomeMatched, RemoteFileID: remoteFileID}
}

// NotMatched builds an outcome for an accepted call without reuse
func NotMatched(raw string) Outcome {
	return Outcome{Kind: OutcomeNotMatched, Raw: raw}
}

// Failed builds an error outcome
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeMatched:
		return fmt.Sprintf("matched(%s)", o.RemoteFileID)
	case OutcomeNotMatched:
		return "not_matched"
	default:
		return fmt.Sprintf("error(%v)", o.Err)
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	ErrUnreadableDocument  = errors.New("unreadable document")
	ErrNoCandidateFound    = errors.New("no company candidate found")
	ErrAmbiguousCandidates = errors.New("ambiguous company candidates")
	ErrResolutionFailed    = errors.New("company resolution failed")
	ErrTaggingUnavailable  = errors.New("date tagging unavailable")

	ErrCollaboratorOutage = errors.New("collaborator outage")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

var skipKinds = []struct {
	kind   error
	reason SkipReason
}{
	{ErrUnreadableDocument, SkipUnreadableDocument},
	{ErrNoCandidateFound, SkipNoCandidateFound},
	{ErrAmbiguousCandidates, SkipAmbiguousCandidates},
	{ErrResolutionFailed, SkipResolutionFailed},
	{ErrTaggingUnavailable, SkipTaggingUnavailable},
}

// SkipReasonOf reports whether err is one of the per-document skip conditions.
func SkipReasonOf(err error) (SkipReason, bool) {
	if err == nil {
		return "", false
	}
	for _, k := range skipKinds {
		if errors.Is(err, k.kind) {
			return k.reason, true
		}
	}
	return "", false
}

// IsCollaboratorFailure reports skips caused by an unreachable lookup service or
// tagging model rather than by the document itself.
func IsCollaboratorFailure(err error) bool {
	if errors.Is(err, ErrTaggingUnavailable) {
		return true
	}
	return errors.Is(err, ErrResolutionFailed) && errors.Is(err, ErrTemporary)
}

package services

import (
	"errors"

	"github.com/cenkalti/backoff/v5"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/remote"
)

// ClassifyFailure decides whether a failed upload can succeed on retry.
// Rejections by the server (payload, auth, conflict) and broken local
// evidence are permanent. Timeouts, lost connectivity, 5xx replies and
// anything unrecognised are transient.
func ClassifyFailure(err error) models.FailureKind {
	if err == nil {
		return models.FailureTransient
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return models.FailurePermanent
	}

	if errors.Is(err, models.ErrPhotoFileMissing) || errors.Is(err, models.ErrPhotoCorrupt) {
		return models.FailurePermanent
	}

	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Permanent() {
			return models.FailurePermanent
		}
		return models.FailureTransient
	}

	return models.FailureTransient
}

// retryable wraps an upload error for backoff.Retry: permanent failures stop
// the in-process retry loop immediately.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if ClassifyFailure(err) == models.FailurePermanent {
		return backoff.Permanent(err)
	}
	return err
}

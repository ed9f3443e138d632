package service

import (
	"errors"

	"go-pos-ws/internal/repository"
	apperrors "go-pos-ws/pkg/errors"

	"gorm.io/gorm"
)

// storeError maps repository failures onto the public error codes. Errors
// that already carry a code pass through.
func storeError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case apperrors.As(err) != nil:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.New(apperrors.CodeNotFound, "transaction not found")
	case errors.Is(err, repository.ErrStatusChanged):
		return apperrors.Wrap(apperrors.CodeStateConflict, err, "transaction status changed")
	default:
		return apperrors.Wrap(apperrors.CodeDependency, err, message)
	}
}

func sessionClosed() error {
	return apperrors.New(apperrors.CodeStateConflict, "cart session is closed")
}

func alreadyFinalized() error {
	return apperrors.New(apperrors.CodeStateConflict, "transaction is already finalized")
}

package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

const progressCachePattern = "progress:board:*"

type studentLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Notifier delivers best-effort notifications; implementations never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type progressCache interface {
	Invalidate(ctx context.Context, pattern string) error
}

func requireRole(actor models.Actor, roles ...models.UserRole) error {
	if !actor.HasRole(roles...) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s is not permitted to perform this action", actor.Role))
	}
	return nil
}

// canViewStudent allows a student to read their own records and staff to read anyone's.
func canViewStudent(actor models.Actor, studentID int64) error {
	if actor.Role == models.RoleStudent {
		if actor.ID != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "students may only view their own records")
		}
		return nil
	}
	return requireRole(actor, models.RoleSupervisor, models.RoleCommittee, models.RoleAdmin)
}

func ensureStudent(ctx context.Context, students studentLookup, studentID int64) error {
	exists, err := students.Exists(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

func parseDocumentType(raw models.DocumentType) (models.DocumentType, error) {
	docType, err := models.ParseDocumentType(string(raw))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown document type")
	}
	return docType, nil
}

func invalidateProgress(ctx context.Context, cache progressCache) {
	if cache == nil {
		return
	}
	_ = cache.Invalidate(ctx, progressCachePattern)
}

package service

import (
	"context"
	"errors"

	activity "lifeflow/internal/activity/models"
	"lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

var errUserNotFound = dErrors.New(dErrors.CodeNotFound, "User not found")

func wrapUserErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return errUserNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return errUserExists
	default:
		return passOrWrap(err, msg)
	}
}

// Profile returns the caller's identity with ownership statistics.
func (s *Service) Profile(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, wrapUserErr(err, "Failed to fetch profile")
	}
	stats := models.ProfileStats{DaysActive: user.DaysActive(requestcontext.Now(ctx))}
	if stats.TotalDonors, err = s.count(ctx, s.donorCounter, userID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch profile")
	}
	if stats.TotalRequests, err = s.count(ctx, s.requestCounter, userID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch profile")
	}
	s.record(ctx, activity.NewEntry(userID, activity.ActionViewProfile, "Viewed profile", activity.EntityUser, userID.String()))
	return &models.Profile{User: user, Stats: stats}, nil
}

func (s *Service) count(ctx context.Context, c OwnershipCounter, userID id.UserID) (int, error) {
	if c == nil {
		return 0, nil
	}
	return c.CountByUser(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID id.UserID, patch *models.ProfilePatch) (*models.User, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var user *models.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Execute(ctx, userID,
			func(*models.User) error { return nil },
			func(u *models.User) { patch.ApplyTo(u, now) },
		)
		if err != nil {
			return err
		}
		user = u
		if s.donors == nil || !patch.TouchesDonor() {
			return nil
		}
		return s.donors.SyncIdentity(ctx, u)
	})
	if err != nil {
		return nil, wrapUserErr(err, "Failed to update profile")
	}
	s.record(ctx, activity.NewEntry(userID, activity.ActionUpdateProfile, "Updated profile", activity.EntityUser, userID.String()))
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID id.UserID, req *models.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return passOrWrap(err, "Failed to change password")
	}
	now := requestcontext.Now(ctx)
	_, err = s.users.Execute(ctx, userID,
		func(u *models.User) error {
			if u.PasswordHash == "" {
				return dErrors.New(dErrors.CodeValidation, "Current password is incorrect")
			}
			if err := s.hasher.Verify(req.CurrentPassword, u.PasswordHash); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
					return dErrors.New(dErrors.CodeValidation, "Current password is incorrect")
				}
				return err
			}
			return nil
		},
		func(u *models.User) { u.ApplyPassword(hash, now) },
	)
	if err != nil {
		return wrapUserErr(err, "Failed to change password")
	}
	s.logger.InfoContext(ctx, "password changed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
	)
	return nil
}

// Activities lists the caller's own entries; admins see everyone's.
func (s *Service) Activities(ctx context.Context, userID id.UserID, role models.Role, page id.Page) (*models.ActivityList, error) {
	if s.activity == nil {
		return &models.ActivityList{Items: []activity.Entry{}, Pagination: id.NewPagination(page.Normalize(defaultActivityLimit), 0)}, nil
	}
	page = page.Normalize(defaultActivityLimit)
	var (
		entries []activity.Entry
		total   int
		err     error
	)
	if role == models.RoleAdmin {
		entries, total, err = s.activity.ListAll(ctx, page)
	} else {
		entries, total, err = s.activity.ListByUser(ctx, userID, page)
	}
	if err != nil {
		return nil, passOrWrap(err, "Failed to fetch activities")
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	return &models.ActivityList{Items: entries, Pagination: id.NewPagination(page, total)}, nil
}

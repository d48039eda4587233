package service

import (
	"context"

	"lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/requestcontext"
)

func (s *Service) ListUsers(ctx context.Context, filter models.UserFilter, page id.Page) (*models.UserList, error) {
	page = page.Normalize(defaultUserLimit)
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "Valid role is required")
	}
	users, total, err := s.users.List(ctx, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch users")
	}
	return &models.UserList{Items: users, Pagination: id.NewPagination(page, total)}, nil
}

func (s *Service) UpdateUser(ctx context.Context, userID id.UserID, patch *models.AdminUserPatch) (*models.User, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	user, err := s.users.Execute(ctx, userID,
		func(*models.User) error { return nil },
		func(u *models.User) { patch.ApplyTo(u, now) },
	)
	if err != nil {
		return nil, wrapUserErr(err, "Failed to update user")
	}
	s.logAdmin(ctx, "user updated", user)
	return user, nil
}

func (s *Service) UpdateRole(ctx context.Context, userID id.UserID, req *models.UpdateRoleRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	user, err := s.users.Execute(ctx, userID,
		func(*models.User) error { return nil },
		func(u *models.User) { u.ApplyRole(models.Role(req.Role), now) },
	)
	if err != nil {
		return nil, wrapUserErr(err, "Failed to update user role")
	}
	s.logAdmin(ctx, "user role updated", user)
	return user, nil
}

func (s *Service) logAdmin(ctx context.Context, msg string, user *models.User) {
	s.logger.InfoContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.UserID(ctx).String(),
		"user_id", user.ID.String(),
		"role", user.Role,
	)
}

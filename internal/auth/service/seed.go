package service

import (
	"context"
	"errors"

	"lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

// DemoAccount describes an account provisioned for demonstrations.
type DemoAccount struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      models.Role
	BloodType id.BloodType
}

// DemoAccounts are the credentials advertised on the login screen.
var DemoAccounts = []DemoAccount{
	{FirstName: "John", LastName: "Admin", Email: "admin@lifeflow.com", Password: "admin123", Role: models.RoleAdmin, BloodType: id.OPositive},
	{FirstName: "Jane", LastName: "Staff", Email: "staff@lifeflow.com", Password: "staff123", Role: models.RoleStaff, BloodType: id.APositive},
}

// SeedAccounts creates each account whose email is not yet registered. It
// returns how many were created.
func (s *Service) SeedAccounts(ctx context.Context, accounts []DemoAccount) (int, error) {
	created := 0
	for _, acct := range accounts {
		_, err := s.users.FindByEmail(ctx, acct.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return created, passOrWrap(err, "failed to look up seeded account")
		}
		user, err := models.NewUser(acct.FirstName, acct.LastName, acct.Email, acct.Role, requestcontext.Now(ctx))
		if err != nil {
			return created, err
		}
		user.BloodType = acct.BloodType
		if user.PasswordHash, err = s.hasher.Hash(acct.Password); err != nil {
			return created, passOrWrap(err, "failed to hash seeded password")
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return created, passOrWrap(err, "failed to create seeded account")
		}
		created++
		s.logger.InfoContext(ctx, "seeded account", "email", user.Email, "role", user.Role)
	}
	return created, nil
}

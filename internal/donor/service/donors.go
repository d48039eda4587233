package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	activity "lifeflow/internal/activity/models"
	authmodels "lifeflow/internal/auth/models"
	"lifeflow/internal/donor/models"
	"lifeflow/internal/platform/sequence"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

func noCheck[T any](T) error { return nil }

// ReserveDonorID allocates the display id of a donor about to be created.
// Callers reserve before their first write.
func (s *Service) ReserveDonorID(ctx context.Context) (string, error) {
	now := requestcontext.Now(ctx)
	seq, err := s.seq.Next(ctx, sequence.ScopeDonor, now)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to allocate donor id")
	}
	return id.FormatDisplayID(id.DonorPrefix, now, seq), nil
}

// EnrollUser creates the donor record for a freshly registered identity
// under a display id from ReserveDonorID. An identity that already has a
// donor is left as is.
func (s *Service) EnrollUser(ctx context.Context, user *authmodels.User, displayID string) error {
	if !user.BloodType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "Please provide a valid blood type")
	}
	if _, err := s.store.FindByUser(ctx, user.ID); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return wrapDonorErr(err, "failed to look up donor")
	}
	d, err := newDonor(user, displayID, user.BloodType, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, d); err != nil {
		return wrapDonorErr(err, "failed to create donor")
	}
	s.metrics.IncrementDonorsCreated()
	return nil
}

// SyncIdentity carries a profile edit of user onto its donor record. An
// identity without a donor is left alone.
func (s *Service) SyncIdentity(ctx context.Context, user *authmodels.User) error {
	d, err := s.store.FindByUser(ctx, user.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return wrapDonorErr(err, "failed to look up donor")
	}
	now := requestcontext.Now(ctx)
	_, err = s.store.Execute(ctx, d.ID, noCheck[*models.Donor], func(d *models.Donor) {
		d.ApplyProfile(user.FirstName, user.LastName, user.Email, user.Phone, user.BloodType, now)
	})
	if err != nil {
		return wrapDonorErr(err, "failed to update donor")
	}
	return nil
}

// view attaches the linked identity. A missing identity is not an error.
func (s *Service) view(ctx context.Context, d *models.Donor) (*models.DonorView, error) {
	user, err := s.users.FindByID(ctx, d.UserID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor identity")
	}
	v := models.NewDonorView(d, user, requestcontext.Now(ctx))
	return &v, nil
}

// List pages through donors newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Donor, id.Pagination, error) {
	page = page.Normalize(defaultListLimit)
	if filter.BloodType != "" && !filter.BloodType.IsValid() {
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Please provide a valid blood type")
	}
	if filter.Eligibility != "" && !filter.Eligibility.IsValid() {
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Invalid eligibility status")
	}
	donors, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, id.Pagination{}, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch donors")
	}
	return donors, id.NewPagination(page, total), nil
}

func (s *Service) Get(ctx context.Context, donorID id.DonorID) (*models.DonorView, error) {
	d, err := s.store.FindByID(ctx, donorID)
	if err != nil {
		return nil, wrapDonorErr(err, "Failed to fetch donor")
	}
	return s.view(ctx, d)
}

// Create upserts the identity by email and then the donor by identity, in
// one unit of work.
func (s *Service) Create(ctx context.Context, req *models.CreateDonorRequest) (_ *models.DonorView, err error) {
	ctx, span := tracer.Start(ctx, "Donor.Service.Create")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)
	bloodType := id.BloodType(req.BloodType)

	var (
		donor   *models.Donor
		user    *authmodels.User
		created bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.donorByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		var displayID string
		if existing == nil {
			if displayID, err = s.ReserveDonorID(ctx); err != nil {
				return err
			}
		}

		u, err := s.upsertIdentity(ctx, req, now)
		if err != nil {
			return err
		}
		user = u

		if existing != nil {
			donor, err = s.store.Execute(ctx, existing.ID, noCheck[*models.Donor], func(d *models.Donor) {
				req.ApplyProfile(d)
				d.ApplyIdentity(u.FirstName, u.LastName, u.Email)
				d.UpdatedAt = now
			})
			return err
		}

		d, err := newDonor(u, displayID, bloodType, now)
		if err != nil {
			return err
		}
		req.ApplyProfile(d)
		if !actor.IsNil() {
			d.CreatedBy = &actor
		}
		if err := s.store.Create(ctx, d); err != nil {
			return err
		}
		donor, created = d, true
		return nil
	})
	if err != nil {
		return nil, wrapDonorErr(err, "Failed to create donor")
	}

	span.SetAttributes(attribute.String("donor_id", donor.ID.String()), attribute.Bool("created", created))
	if created {
		s.metrics.IncrementDonorsCreated()
	}
	s.record(ctx, activity.NewEntry(actor, activity.ActionCreateDonor,
		fmt.Sprintf("Created donor %s (%s)", donor.FullName(), donor.DisplayID),
		activity.EntityDonor, donor.ID.String()).
		WithMetadata("bloodType", string(donor.BloodType)))
	s.logger.InfoContext(ctx, "donor saved",
		"request_id", requestcontext.RequestID(ctx),
		"donor_id", donor.ID.String(),
		"created", created,
	)
	v := models.NewDonorView(donor, user, now)
	return &v, nil
}

// upsertIdentity finds the identity by email, refreshing its contact
// fields, or creates a donor-role identity without a credential.
// donorByEmail returns the donor linked to the identity with the email, or
// nil when either is missing.
func (s *Service) donorByEmail(ctx context.Context, email string) (*models.Donor, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d, err := s.store.FindByUser(ctx, u.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

func (s *Service) upsertIdentity(ctx context.Context, req *models.CreateDonorRequest, now time.Time) (*authmodels.User, error) {
	bloodType := id.BloodType(req.BloodType)
	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		return s.users.Execute(ctx, existing.ID, noCheck[*authmodels.User], func(u *authmodels.User) {
			u.ApplyDonorContact(req.FirstName, req.LastName, req.Phone, bloodType, now)
			if dob := req.DateOfBirth.Ptr(); dob != nil {
				u.DateOfBirth = dob
			}
		})
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	u, err := authmodels.NewUser(req.FirstName, req.LastName, req.Email, authmodels.RoleDonor, now)
	if err != nil {
		return nil, invariantToValidation(err)
	}
	u.Phone = req.Phone
	u.BloodType = bloodType
	u.DateOfBirth = req.DateOfBirth.Ptr()
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update applies a whitelisted patch. Name, phone and blood type changes
// reach the identity in the same unit of work.
func (s *Service) Update(ctx context.Context, donorID id.DonorID, patch *models.UpdateDonorRequest) (_ *models.DonorView, err error) {
	ctx, span := tracer.Start(ctx, "Donor.Service.Update",
		trace.WithAttributes(attribute.String("donor_id", donorID.String())))
	defer func() { endSpan(span, err) }()

	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var donor *models.Donor
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.store.Execute(ctx, donorID, noCheck[*models.Donor], func(d *models.Donor) {
			patch.ApplyTo(d)
			d.UpdatedAt = now
		})
		if err != nil {
			return err
		}
		donor = d
		if !patch.TouchesIdentity() {
			return nil
		}
		first, last, phone, bloodType := patch.IdentityFields()
		_, err = s.users.Execute(ctx, d.UserID, noCheck[*authmodels.User], func(u *authmodels.User) {
			u.ApplyDonorContact(first, last, phone, bloodType, now)
		})
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, wrapDonorErr(err, "Failed to update donor")
	}

	s.record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionUpdateDonor,
		"Updated donor "+donor.FullName(), activity.EntityDonor, donor.ID.String()))
	return s.view(ctx, donor)
}

// UpdateEligibility sets the status by hand. An empty status returns the
// donor unchanged and records nothing.
func (s *Service) UpdateEligibility(ctx context.Context, donorID id.DonorID, req *models.EligibilityRequest) (*models.DonorView, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Status == "" {
		return s.Get(ctx, donorID)
	}
	now := requestcontext.Now(ctx)
	status := models.EligibilityStatus(req.Status)
	d, err := s.store.Execute(ctx, donorID, noCheck[*models.Donor], func(d *models.Donor) {
		d.ApplyEligibilityStatus(status, models.IneligibilityReason(req.Reason), now)
	})
	if err != nil {
		return nil, wrapDonorErr(err, "Failed to update donor eligibility")
	}
	s.record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionUpdateDonor,
		fmt.Sprintf("Set eligibility of donor %s to %s", d.FullName(), status),
		activity.EntityDonor, d.ID.String()).
		WithMetadata("eligibilityStatus", string(status)))
	return s.view(ctx, d)
}

// Delete removes the donor. The identity is kept.
func (s *Service) Delete(ctx context.Context, donorID id.DonorID) error {
	d, err := s.store.FindByID(ctx, donorID)
	if err != nil {
		return wrapDonorErr(err, "Failed to delete donor")
	}
	if err := s.store.Delete(ctx, donorID); err != nil {
		return wrapDonorErr(err, "Failed to delete donor")
	}
	s.record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionDeleteDonor,
		"Deleted donor "+d.FullName(), activity.EntityDonor, d.ID.String()))
	s.logger.InfoContext(ctx, "donor deleted",
		"request_id", requestcontext.RequestID(ctx),
		"donor_id", d.ID.String(),
	)
	return nil
}

// RecordDonation appends a donation, recomputes eligibility, mirrors the
// entry onto the identity and, when a campaign is named, adds it to the
// campaign. All writes share one unit of work.
func (s *Service) RecordDonation(ctx context.Context, donorID id.DonorID, req *models.RecordDonationRequest) (_ *models.DonorView, err error) {
	ctx, span := tracer.Start(ctx, "Donor.Service.RecordDonation",
		trace.WithAttributes(attribute.String("donor_id", donorID.String())))
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	entry := models.Donation{
		Date:        req.Date.Time,
		Units:       req.Units,
		Location:    req.Location,
		CampaignID:  req.Campaign(),
		Notes:       req.Notes,
		Vitals:      req.Vitals,
		TestResults: req.TestResults,
		Status:      models.DonationStatus(req.Status),
	}
	if entry.Date.IsZero() {
		entry.Date = now
	}

	var donor *models.Donor
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, donorID)
		if err != nil {
			return err
		}
		if entry.CampaignID != nil && s.campaigns != nil {
			if err := s.campaigns.RecordDonorDonation(ctx, *entry.CampaignID, donorID, current.BloodType, entry.Units, entry.Notes); err != nil {
				return err
			}
		}
		d, err := s.store.Execute(ctx, donorID, noCheck[*models.Donor], func(d *models.Donor) {
			d.AddDonation(entry, now)
		})
		if err != nil {
			return err
		}
		donor = d
		_, err = s.users.Execute(ctx, d.UserID, noCheck[*authmodels.User], func(u *authmodels.User) {
			u.ApplyDonation(authmodels.DonationRecord{Date: entry.Date, Units: entry.Units, Location: entry.Location},
				identityEligibility(d.EligibilityStatus), d.NextEligibleDonation, now)
		})
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, wrapDonorErr(err, "Failed to record donation")
	}

	s.metrics.IncrementDonationsRecorded()
	s.record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionUpdateDonor,
		fmt.Sprintf("Recorded donation of %d unit(s) for donor %s", entry.Units, donor.FullName()),
		activity.EntityDonor, donor.ID.String()).
		WithMetadata("units", entry.Units).
		WithMetadata("location", entry.Location))
	s.logger.InfoContext(ctx, "donation recorded",
		"request_id", requestcontext.RequestID(ctx),
		"donor_id", donor.ID.String(),
		"units", entry.Units,
		"eligibility", donor.EligibilityStatus,
	)
	return s.view(ctx, donor)
}

func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	groups, err := s.store.CountGroups(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch donor statistics")
	}
	stats := models.BuildStats(groups)
	return &stats, nil
}

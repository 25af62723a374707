package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/idx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

// CompleteResult is the state of both records after Complete.
type CompleteResult struct {
	Company domain.Company
	User    domain.User
}

// OnboardingService moves a company through its onboarding steps. Every
// transition runs in one transaction and only the company's HR user may
// make it.
type OnboardingService struct {
	Store   store.Store
	Metrics *metrics.Metrics
}

// Status reports the onboarding progress of the HR user's company.
func (s *OnboardingService) Status(ctx context.Context, hrID string) (domain.OnboardingStatus, error) {
	user, err := s.Store.Users().GetUserByID(ctx, hrID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OnboardingStatus{}, ErrNotFound
		}
		return domain.OnboardingStatus{}, err
	}
	if user.CompanyID == "" {
		return domain.OnboardingStatus{}, ErrNoCompany
	}

	company, err := s.Store.Companies().GetCompanyByID(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OnboardingStatus{}, ErrNotFound
		}
		return domain.OnboardingStatus{}, err
	}
	return company.Status(), nil
}

// SetPreferences records what the company wants to set up first and moves
// it to at least the preferences step.
func (s *OnboardingService) SetPreferences(ctx context.Context, hrID string, selections []string) (domain.OnboardingStatus, error) {
	l := slogx.FromContext(ctx)

	var company domain.Company
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		// 1. The caller must already have a company they own
		user, err := loadUser(ctx, tx, hrID)
		if err != nil {
			return err
		}
		if user.CompanyID == "" {
			return ErrNoCompany
		}
		company, err = loadCompany(ctx, tx, user.CompanyID)
		if err != nil {
			return err
		}
		if !company.OwnedBy(user.ID) {
			return ErrForbidden
		}

		// 2. Validate and dedupe the selection
		prefs, invalid := domain.ParseSetupPreferences(selections)
		if len(invalid) > 0 {
			return &InvalidPreferencesError{Invalid: invalid}
		}

		// 3. Persist
		company.SetupPreferences = prefs
		company.AdvanceTo(domain.OnboardingStepPreferences)
		company.UpdatedAt = time.Now()
		return tx.Companies().UpdateCompany(ctx, company)
	})
	if err != nil {
		s.Metrics.Onboarding("preferences", metrics.ResultFailure)
		return domain.OnboardingStatus{}, err
	}

	s.Metrics.Onboarding("preferences", metrics.ResultSuccess)
	l.Info("setup preferences saved", slog.String("company_id", company.ID), slog.Int("step", company.OnboardingStep))
	return company.Status(), nil
}

// Complete finishes onboarding. On the first call it creates the company
// from profile and links the HR user to it; afterwards it updates the
// existing company. The company and the user are written together or not
// at all.
func (s *OnboardingService) Complete(ctx context.Context, hrID string, profile domain.CompanyProfile) (CompleteResult, error) {
	l := slogx.FromContext(ctx)

	if err := requireFields(map[string]string{
		"companyName":  profile.Name,
		"companyEmail": profile.Email,
	}); err != nil {
		return CompleteResult{}, err
	}

	var prefs []domain.SetupPreference
	if profile.SetupPreferences != nil {
		var invalid []string
		prefs, invalid = domain.ParseSetupPreferences(profile.SetupPreferences)
		if len(invalid) > 0 {
			return CompleteResult{}, &InvalidPreferencesError{Invalid: invalid}
		}
	}

	var result CompleteResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now()

		user, err := loadUser(ctx, tx, hrID)
		if err != nil {
			return err
		}

		// 1. Create the company on first completion, else load it
		var company domain.Company
		if user.CompanyID == "" {
			company = domain.Company{
				ID:             idx.NewAt(now).String(),
				HRID:           user.ID,
				OnboardingStep: domain.OnboardingStepPreferences,
				CreatedAt:      now,
			}
			applyProfile(&company, profile)
			if err := tx.Companies().CreateCompany(ctx, company); err != nil {
				return err
			}
			if err := tx.Users().SetCompany(ctx, user.ID, company.ID); err != nil {
				return err
			}
			user.CompanyID = company.ID
		} else {
			company, err = loadCompany(ctx, tx, user.CompanyID)
			if err != nil {
				return err
			}
			if !company.OwnedBy(user.ID) {
				return ErrForbidden
			}
			applyProfile(&company, profile)
		}

		// 2. Finish the company
		if prefs != nil {
			company.SetupPreferences = prefs
		}
		company.AdvanceTo(domain.OnboardingStepProfile)
		company.OnboardingCompleted = true
		company.UpdatedAt = now
		if err := tx.Companies().UpdateCompany(ctx, company); err != nil {
			return err
		}

		// 3. Finish the user
		if err := tx.Users().MarkOnboarded(ctx, user.ID); err != nil {
			return err
		}
		user.Onboarded = true
		user.Status = domain.StatusActive
		user.UpdatedAt = now

		result = CompleteResult{Company: company, User: user}
		return nil
	})
	if err != nil {
		s.Metrics.Onboarding("complete", metrics.ResultFailure)
		return CompleteResult{}, err
	}

	s.Metrics.Onboarding("complete", metrics.ResultSuccess)
	l.Info("onboarding completed", slog.String("company_id", result.Company.ID), slog.String("user_id", result.User.ID))
	return result, nil
}

// applyProfile copies the supplied profile onto c. Optional fields left
// blank keep their current value.
func applyProfile(c *domain.Company, p domain.CompanyProfile) {
	c.Name = strings.TrimSpace(p.Name)
	c.Email = domain.NormalizeEmail(p.Email)

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Industry, p.Industry)
	set(&c.Website, p.Website)
	set(&c.Address, p.Address)
	set(&c.City, p.City)
	set(&c.Country, p.Country)
	set(&c.Logo, p.Logo)
	set(&c.Description, p.Description)
	set(&c.MissionStatement, p.MissionStatement)
	set(&c.Values, p.Values)
	if p.EmployeeCount > 0 {
		c.EmployeeCount = p.EmployeeCount
	}
}

func loadUser(ctx context.Context, st store.Store, id string) (domain.User, error) {
	user, err := st.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return user, err
}

func loadCompany(ctx context.Context, st store.Store, id string) (domain.Company, error) {
	company, err := st.Companies().GetCompanyByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Company{}, ErrNotFound
	}
	return company, err
}

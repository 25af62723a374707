package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
)

type companiesRepo struct {
	db dbtx
}

func (r *companiesRepo) GetCompanyByID(ctx context.Context, id string) (domain.Company, error) {
	var (
		c                    domain.Company
		prefs                string
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_name, company_email, industry, website, address, city, country,
		       employee_count, logo, description, mission_statement, company_values, hr_id,
		       setup_preferences, onboarding_step, onboarding_completed, created_at, updated_at
		FROM companies WHERE id = ?`, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Industry, &c.Website, &c.Address, &c.City, &c.Country,
		&c.EmployeeCount, &c.Logo, &c.Description, &c.MissionStatement, &c.Values, &c.HRID,
		&prefs, &c.OnboardingStep, &c.OnboardingCompleted, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Company{}, mapNotFound(err)
	}
	c.SetupPreferences = splitFields[domain.SetupPreference](prefs)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func (r *companiesRepo) CreateCompany(ctx context.Context, c domain.Company) error {
	now := toMillis(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO companies (
			id, company_name, company_email, industry, website, address, city, country,
			employee_count, logo, description, mission_statement, company_values, hr_id,
			setup_preferences, onboarding_step, onboarding_completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Industry, c.Website, c.Address, c.City, c.Country,
		c.EmployeeCount, c.Logo, c.Description, c.MissionStatement, c.Values, c.HRID,
		joinFields(c.SetupPreferences), c.OnboardingStep, boolToInt(c.OnboardingCompleted), now, now,
	)
	return mapUnique(err)
}

func (r *companiesRepo) UpdateCompany(ctx context.Context, c domain.Company) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE companies
		SET company_name = ?, company_email = ?, industry = ?, website = ?, address = ?,
		    city = ?, country = ?, employee_count = ?, logo = ?, description = ?,
		    mission_statement = ?, company_values = ?, setup_preferences = ?,
		    onboarding_step = MAX(onboarding_step, ?), onboarding_completed = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Email, c.Industry, c.Website, c.Address,
		c.City, c.Country, c.EmployeeCount, c.Logo, c.Description,
		c.MissionStatement, c.Values, joinFields(c.SetupPreferences),
		c.OnboardingStep, boolToInt(c.OnboardingCompleted), toMillis(time.Now()),
		c.ID,
	))
}

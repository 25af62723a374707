package domain

import (
	"slices"
	"time"
)

// Onboarding steps of a company.
const (
	OnboardingStepNone        = 0
	OnboardingStepPreferences = 1
	OnboardingStepProfile     = 2
)

type SetupPreference string

const (
	PreferenceOnboardingHires    SetupPreference = "onboarding_hires"
	PreferenceTeamPerformance    SetupPreference = "team_performance"
	PreferenceManagingOperations SetupPreference = "managing_operations"
	PreferenceTeamManagement     SetupPreference = "team_management"
	PreferenceSettingUpPayroll   SetupPreference = "setting_up_payroll"
	PreferenceDecideLater        SetupPreference = "decide_later"
)

// SetupPreferences lists every accepted value.
var SetupPreferences = []SetupPreference{
	PreferenceOnboardingHires,
	PreferenceTeamPerformance,
	PreferenceManagingOperations,
	PreferenceTeamManagement,
	PreferenceSettingUpPayroll,
	PreferenceDecideLater,
}

// ParseSetupPreferences dedupes values in order of first appearance and
// splits them into accepted preferences and unrecognized values.
func ParseSetupPreferences(values []string) (prefs []SetupPreference, invalid []string) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}

		p := SetupPreference(v)
		if slices.Contains(SetupPreferences, p) {
			prefs = append(prefs, p)
		} else {
			invalid = append(invalid, v)
		}
	}
	return prefs, invalid
}

type Company struct {
	ID                  string
	Name                string
	Email               string // normalized
	Industry            string
	Website             string
	Address             string
	City                string
	Country             string
	EmployeeCount       int
	Logo                string
	Description         string
	MissionStatement    string
	Values              string
	HRID                string // owning HR user, immutable once set
	SetupPreferences    []SetupPreference
	OnboardingStep      int
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OwnedBy reports whether userID may mutate the company.
func (c Company) OwnedBy(userID string) bool {
	return c.HRID == "" || c.HRID == userID
}

// AdvanceTo raises the onboarding step to at least step. It never lowers it.
func (c *Company) AdvanceTo(step int) {
	c.OnboardingStep = max(c.OnboardingStep, step)
}

// CompanyProfile is the caller-supplied part of a company.
type CompanyProfile struct {
	Name             string   `json:"companyName"`
	Email            string   `json:"companyEmail"`
	Industry         string   `json:"industry,omitempty"`
	Website          string   `json:"website,omitempty"`
	Address          string   `json:"address,omitempty"`
	City             string   `json:"city,omitempty"`
	Country          string   `json:"country,omitempty"`
	EmployeeCount    int      `json:"employeeCount,omitempty"`
	Logo             string   `json:"logo,omitempty"`
	Description      string   `json:"description,omitempty"`
	MissionStatement string   `json:"missionStatement,omitempty"`
	Values           string   `json:"values,omitempty"`
	SetupPreferences []string `json:"setupPreferences,omitempty"`
}

// OnboardingStatus summarizes a company's onboarding progress.
type OnboardingStatus struct {
	CompanyID           string            `json:"companyId"`
	CompanyName         string            `json:"companyName"`
	OnboardingCompleted bool              `json:"onboardingCompleted"`
	OnboardingStep      int               `json:"onboardingStep"`
	SetupPreferences    []SetupPreference `json:"setupPreferences"`
}

func (c Company) Status() OnboardingStatus {
	prefs := c.SetupPreferences
	if prefs == nil {
		prefs = []SetupPreference{}
	}
	return OnboardingStatus{
		CompanyID:           c.ID,
		CompanyName:         c.Name,
		OnboardingCompleted: c.OnboardingCompleted,
		OnboardingStep:      c.OnboardingStep,
		SetupPreferences:    prefs,
	}
}

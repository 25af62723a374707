package identitysdk

import "time"

// User is the public view of an account.
type User struct {
	ID               string `json:"id"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	PositionTitle    string `json:"positionTitle,omitempty"`
	Role             string `json:"role"`
	CompanyID        string `json:"companyId,omitempty"`
	Onboarded        bool   `json:"onboarded"`
	Status           string `json:"status"`
	EmailVerified    bool   `json:"emailVerified"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// TokenPair is returned by every flow that starts a session.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type authData struct {
	User User `json:"user"`
	TokenPair
}

// SignUpRequest registers an account. Without InviteToken the account is
// an HR admin; with one it joins the inviting company as staff.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone,omitempty"`
	InviteToken     string `json:"inviteToken,omitempty"`
}

// TwoFactorEnrollment is the pending TOTP secret shown to the user.
type TwoFactorEnrollment struct {
	ManualCode string `json:"manualCode"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
	Issuer     string `json:"issuer"`
	Account    string `json:"account"`
}

// OnboardingStatus reports how far the HR admin's company setup got.
type OnboardingStatus struct {
	CompanyID           string   `json:"companyId"`
	CompanyName         string   `json:"companyName"`
	OnboardingCompleted bool     `json:"onboardingCompleted"`
	OnboardingStep      int      `json:"onboardingStep"`
	SetupPreferences    []string `json:"setupPreferences"`
}

// CompanyProfile is submitted to finish onboarding.
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

// CompletedOnboarding is the result of a successful completion.
type CompletedOnboarding struct {
	Company struct {
		ID                  string   `json:"id"`
		CompanyName         string   `json:"companyName"`
		OnboardingCompleted bool     `json:"onboardingCompleted"`
		OnboardingStep      int      `json:"onboardingStep"`
		SetupPreferences    []string `json:"setupPreferences"`
	} `json:"company"`
	User struct {
		ID        string `json:"id"`
		Onboarded bool   `json:"onboarded"`
		Status    string `json:"status"`
	} `json:"user"`
}

// Invitation is a staff invite minted by an HR admin.
type Invitation struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	CompanyID   string    `json:"companyId"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expiresAt"`
	InviteToken string    `json:"inviteToken"`
}

// HealthResponse is served by /livez and /readyz.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Checks  *struct {
		Database string `json:"database"`
		Signer   string `json:"signer"`
		Mail     string `json:"mail,omitempty"`
	} `json:"checks,omitempty"`
}

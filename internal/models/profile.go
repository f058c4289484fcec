package models

// BusinessProfile describes a company's capabilities, past performance and
// preferences. It is read-only input to match scoring. Enum fields left empty
// by the caller are defaulted once at the boundary via ApplyDefaults so the
// scoring logic can assume populated values.
type BusinessProfile struct {
	CompanyInfo  CompanyInfo  `json:"companyInfo"`
	Capabilities Capabilities `json:"capabilities"`
	Preferences  Preferences  `json:"preferences"`
}

type CompanyInfo struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name"`
	Size              string   `json:"size"` // small, medium, large
	SecurityClearance []string `json:"securityClearance,omitempty"`
}

type Capabilities struct {
	TechnicalAreas     []string          `json:"technicalAreas"`
	Certifications     []string          `json:"certifications,omitempty"`
	UniqueCapabilities []string          `json:"uniqueCapabilities,omitempty"`
	PastPerformance    []PastPerformance `json:"pastPerformance,omitempty"`
}

type PastPerformance struct {
	ContractNumber  string   `json:"contractNumber,omitempty"`
	Agency          string   `json:"agency"`
	ContractType    string   `json:"contractType"` // e.g. "SBIR Phase I", "Prime Contract"
	ProgramName     string   `json:"programName,omitempty"`
	TechnologyAreas []string `json:"technologyAreas,omitempty"`
}

type Preferences struct {
	ContractTypes     []string     `json:"contractTypes,omitempty"`
	AgencyPreferences []string     `json:"agencyPreferences,omitempty"`
	BudgetRange       *BudgetRange `json:"budgetRange,omitempty"`
	RiskTolerance     string       `json:"riskTolerance"` // low, medium, high
	StrategicFocus    []string     `json:"strategicFocus,omitempty"`
	BusinessGoals     []string     `json:"businessGoals,omitempty"`
}

type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ApplyDefaults fills unset enum fields with their documented defaults.
func (p *BusinessProfile) ApplyDefaults() {
	if p.Preferences.RiskTolerance == "" {
		p.Preferences.RiskTolerance = "medium"
	}
	if p.CompanyInfo.Size == "" {
		p.CompanyInfo.Size = "medium"
	}
}

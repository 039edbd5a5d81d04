package client

// Assessment is the analysis engine's externally-computed view of a
// developer. Status values mirror the engine's funnel:
// REGISTERING | PROJECTS_SUBMITTED | ANALYZING | PENDING_ANALYSIS | ASSESSED.
type Assessment struct {
	DeveloperID  string   `json:"developer_id"`
	Status       string   `json:"status"`
	OverallScore *float64 `json:"overall_score,omitempty"`
	TechStack    []string `json:"tech_stack,omitempty"`
	ProjectCount int      `json:"project_count"`
}

// Checkout is the payment processor's reference for a pending purchase.
type Checkout struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

// InvitationEmail is the payload handed to the email collaborator.
type InvitationEmail struct {
	CandidateEmail string `json:"candidate_email"`
	Token          string `json:"token"`
	Message        string `json:"message,omitempty"`
	CompanyName    string `json:"company_name"`
	AcceptURL      string `json:"accept_url"`
}

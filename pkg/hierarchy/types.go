// Package hierarchy implements the four-level accreditation tree:
// projects contain factors, factors contain traits, traits contain
// aspects. Derived progress fields (factor completion percentage, project
// progress) are owned by the cascade engine and recomputed inside the
// same transaction as the triggering write.
package hierarchy

import "time"

// FactorStatus is the review state of a factor
type FactorStatus string

const (
	StatusPending  FactorStatus = "pending"
	StatusApproved FactorStatus = "approved"
	StatusRejected FactorStatus = "rejected"
)

// Valid returns true for a known status value
func (s FactorStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Project is the root of the accreditation tree
type Project struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	// Progress is the integer percentage of completed factors. It is
	// derived; callers never set it directly.
	Progress  int        `json:"progress"`
	Approved  bool       `json:"approved"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Factor is a directly-assignable unit of work under a project
type Factor struct {
	ID          int64        `json:"id"`
	ProjectID   int64        `json:"project_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	StartDate   *time.Time   `json:"start_date,omitempty"`
	EndDate     *time.Time   `json:"end_date,omitempty"`
	Ponderation float64      `json:"ponderation"`
	Status      FactorStatus `json:"status"`
	// CompletionPct and IsCompleted are derived from approved aspects.
	CompletionPct int       `json:"completion_pct"`
	IsCompleted   bool      `json:"is_completed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Trait groups aspects under a factor. It carries no permission state of
// its own; access is inherited from the owning factor.
type Trait struct {
	ID          int64  `json:"id"`
	FactorID    int64  `json:"factor_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// ApprovedPercentage is aggregated from the trait's aspects at read
	// time; it is never stored.
	ApprovedPercentage int       `json:"approved_percentage"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Aspect is the leaf of the tree. Approving an aspect is what drives the
// progress cascade.
type Aspect struct {
	ID                 int64     `json:"id"`
	TraitID            int64     `json:"trait_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Weight             float64   `json:"weight"`
	Approved           bool      `json:"approved"`
	AcceptanceCriteria string    `json:"acceptance_criteria,omitempty"`
	EvaluationRule     string    `json:"evaluation_rule,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

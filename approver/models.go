package approver

import "time"

// Profile mirrors the approvers table. Each profile is one-to-one with an
// account in the users table; the profile ID is what validation steps
// reference.
type Profile struct {
	ID        string
	UserID    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

package company

import "time"

// Company mirrors the companies table.
type Company struct {
	ID        string
	Name      string
	NIT       string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntityType classifies the domain entity a document is attached to.
type EntityType string

const (
	EntityVehicle  EntityType = "VEHICLE"
	EntityEmployee EntityType = "EMPLOYEE"
	EntityOther    EntityType = "OTHER"
)

// ValidEntityType reports whether the given type is a known classification.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityVehicle, EntityEmployee, EntityOther:
		return true
	default:
		return false
	}
}

// DomainEntity is the business object a document hangs off, identified by
// its type plus the UUID of the underlying record.
type DomainEntity struct {
	ID          string
	EntityType  EntityType
	ObjectID    string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

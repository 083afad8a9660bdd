// Package authz holds the authorization decisions for every guarded action.
//
// The functions are pure: they never perform I/O and a nil actor is always
// denied. Ownership checks compare ids only, the admin role does not
// satisfy them.
package authz

import "github.com/dom/medtrack/internal/domain"

// CanManageUsers reports whether actor may create, re-role, list or delete
// user accounts.
func CanManageUsers(actor *domain.Actor) bool {
	return actor != nil && actor.Role == domain.RoleAdmin
}

// CanMutateMedication reports whether actor owns medication.
func CanMutateMedication(actor *domain.Actor, medication *domain.Medication) bool {
	return actor != nil && medication != nil && actor.ID == medication.OwnerID
}

// CanViewMedication uses the same ownership test as CanMutateMedication.
func CanViewMedication(actor *domain.Actor, medication *domain.Medication) bool {
	return CanMutateMedication(actor, medication)
}

// CanMutateDose reports whether actor recorded dose.
func CanMutateDose(actor *domain.Actor, dose *domain.Dose) bool {
	return actor != nil && dose != nil && actor.ID == dose.UserID
}

// CanViewDose uses the same ownership test as CanMutateDose.
func CanViewDose(actor *domain.Actor, dose *domain.Dose) bool {
	return CanMutateDose(actor, dose)
}

// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Any valid access token
	SecurityStaff                       // Staff or admin access token
)

const (
	RentalServicePrefix    = "/boxrental.v1.RentalService/"
	InventoryServicePrefix = "/boxrental.v1.InventoryService/"
)

// EndpointSecurityConfig maps methods to their required security level.
// Finer checks (ownership, admin-only overrides) happen in the service.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// RentalService - Public
	RentalServicePrefix + "ListStatuses":      SecurityPublic,
	RentalServicePrefix + "CheckAvailability": SecurityPublic,
	RentalServicePrefix + "Quote":             SecurityPublic,
	RentalServicePrefix + "TrackRental":       SecurityPublic,

	// RentalService - Access Protected
	RentalServicePrefix + "CreateRental":       SecurityAccess,
	RentalServicePrefix + "GetRental":          SecurityAccess,
	RentalServicePrefix + "ListRentals":        SecurityAccess,
	RentalServicePrefix + "AmendRental":        SecurityAccess,
	RentalServicePrefix + "UpdateRentalStatus": SecurityAccess,

	// RentalService - Staff Protected
	RentalServicePrefix + "OverrideStatus":     SecurityStaff,
	RentalServicePrefix + "AddNote":            SecurityStaff,
	RentalServicePrefix + "ListEvents":         SecurityStaff,
	RentalServicePrefix + "LookupByMasterCode": SecurityStaff,

	// InventoryService - Staff Protected
	InventoryServicePrefix + "RegisterBox":       SecurityStaff,
	InventoryServicePrefix + "SetBoxMaintenance": SecurityStaff,
	InventoryServicePrefix + "Reconcile":         SecurityStaff,
}

// GetSecurityLevel returns the security level for a given method
func GetSecurityLevel(method string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityStaff
}

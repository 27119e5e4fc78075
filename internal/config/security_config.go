// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication, gateway callbacks verify their own signature
	SecurityCustomer                      // Access token required
	SecurityStaff                         // Access token with staff or admin role required
)

// EndpointSecurityConfig maps named HTTP routes to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Payment gateway - Public
	"payments.notify": SecurityPublic,
	"payments.return": SecurityPublic,

	// Orders - Customer
	"orders.quote":        SecurityCustomer,
	"orders.create":       SecurityCustomer,
	"orders.list":         SecurityCustomer,
	"orders.get":          SecurityCustomer,
	"orders.status":       SecurityCustomer,
	"orders.cancel":       SecurityCustomer,
	"orders.review":       SecurityCustomer,
	"orders.payment_form": SecurityCustomer,

	// Coupons - Customer
	"coupons.claim": SecurityCustomer,

	// After-sales - Customer
	"after_sales.open":     SecurityCustomer,
	"after_sales.list":     SecurityCustomer,
	"after_sales.get":      SecurityCustomer,
	"after_sales.evidence": SecurityCustomer,
	"evidence.download":    SecurityCustomer,

	// Admin - Staff
	"admin.orders.list":       SecurityStaff,
	"admin.orders.stats":      SecurityStaff,
	"admin.orders.approve":    SecurityStaff,
	"admin.orders.reject":     SecurityStaff,
	"admin.orders.pickup":     SecurityStaff,
	"admin.orders.return":     SecurityStaff,
	"admin.orders.complete":   SecurityStaff,
	"admin.after_sales.list":  SecurityStaff,
	"admin.after_sales.audit": SecurityStaff,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityStaff
}

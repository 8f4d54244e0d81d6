package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Sign-in surface
	RouteLogin = "/login"

	// Auth API
	RouteAPIAuthLogin   = "/api/auth/login"
	RouteAPIAuthLogout  = "/api/auth/logout"
	RouteAPIAuthSession = "/api/auth/session"
	RouteAPIAuthReload  = "/api/auth/reload"
	RouteAPIAuthMe      = "/api/auth/me"

	// CRM pages
	RouteDashboard                = "/dashboard"
	RouteAdminUsers               = "/admin/users"
	RouteAdminConfig              = "/admin/config"
	RouteAdminEquipment           = "/admin/equipment"
	RouteAdminServices            = "/admin/services"
	RouteAdminQuotationTemplates  = "/admin/quotation-templates"
	RouteAdminQuotationTemplateID = "/admin/quotation-templates/edit/{id}"
	RouteLeads                    = "/leads"
	RouteCustomers                = "/customers"
	RouteDeals                    = "/deals"
	RouteDealID                   = "/deals/{id}"
	RouteQuotations               = "/quotations"
	RouteQuotationsCreate         = "/quotations/create"
	RouteJobs                     = "/jobs"
	RouteSiteAssessments          = "/site-assessments"
	RouteJobSummary               = "/job-summary"
)

package server

import "github.com/jrsteele09/crm-session/users"

// crmPage is a guarded CRM area and the roles allowed into it.
type crmPage struct {
	Pattern string
	Title   string
	Roles   []users.Role
}

var (
	adminOnly       = []users.Role{users.RoleAdmin}
	adminOperations = []users.Role{users.RoleAdmin, users.RoleOperationsManager}
	adminSales      = []users.Role{users.RoleAdmin, users.RoleSalesAgent}
	salesPipeline   = []users.Role{users.RoleAdmin, users.RoleSalesAgent, users.RoleOperationsManager}
	fieldWork       = []users.Role{users.RoleAdmin, users.RoleOperationsManager, users.RoleOperator}
)

var crmPages = []crmPage{
	{RouteAdminUsers, "User Management", adminOnly},
	{RouteAdminConfig, "Configuration", adminOnly},
	{RouteAdminEquipment, "Equipment Management", adminOperations},
	{RouteAdminServices, "Services Management", adminOperations},
	{RouteAdminQuotationTemplates, "Quotation Templates", adminSales},
	{RouteAdminQuotationTemplateID, "Edit Quotation Template", adminSales},
	{RouteLeads, "Leads", salesPipeline},
	{RouteCustomers, "Customers", salesPipeline},
	{RouteDeals, "Deals", salesPipeline},
	{RouteDealID, "Deal Details", salesPipeline},
	{RouteQuotations, "Quotations", salesPipeline},
	{RouteQuotationsCreate, "Create Quotation", adminSales},
	{RouteJobs, "Jobs", fieldWork},
	{RouteSiteAssessments, "Site Assessments", fieldWork},
	{RouteJobSummary, "Job Summary", fieldWork},
}

// dashboard is the landing page for a role.
type dashboard struct {
	Name  string
	Title string
	Links []string
}

var dashboards = map[users.Role]dashboard{
	users.RoleAdmin: {
		Name:  "admin",
		Title: "Admin Dashboard",
		Links: []string{RouteAdminUsers, RouteAdminConfig, RouteLeads, RouteDeals, RouteJobs},
	},
	users.RoleSalesAgent: {
		Name:  "sales_agent",
		Title: "Sales Dashboard",
		Links: []string{RouteLeads, RouteCustomers, RouteDeals, RouteQuotations},
	},
	users.RoleOperationsManager: {
		Name:  "operations_manager",
		Title: "Operations Dashboard",
		Links: []string{RouteJobs, RouteAdminEquipment, RouteSiteAssessments, RouteDeals},
	},
	users.RoleOperator: {
		Name:  "operator",
		Title: "Operator Dashboard",
		Links: []string{RouteJobs, RouteSiteAssessments, RouteJobSummary},
	},
}

func dashboardFor(role users.Role) dashboard {
	return dashboards[role]
}

package shared

// Asynq task types for scheduled background jobs.
const (
	TypeFxRefresh           = "currency:refresh"
	TypeRepriceLive         = "product:reprice_live"
	TypeInventorySync       = "product:inventory_sync"
	TypeDispatchImportTasks = "import:dispatch_tasks"
)

// Queue names.
const (
	QueueDefault = "default"
	QueueImports = "imports"
)

// Roles recognized by the auth middleware. Super admin passes every admin
// gate.
const (
	RoleCustomer   = "customer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// SourceCJ is the only supplier wired into the import flow.
const SourceCJ = "cj"

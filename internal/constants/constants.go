package constants

import "time"

const (
	DefaultMaxActions  = 3
	DefaultQuotaWindow = 6 * time.Hour
)

const (
	UserIDHeader = "x-user-id"
	AdminActor   = "admin"
)

const (
	ActivitySpin = "random_pick"
	ActivityAdd  = "add_hint"
)

const (
	RouteUserStatus  = "/api/user/status"
	RouteRandomHint  = "/api/random-hint"
	RouteHints       = "/api/hints"
	RouteAdminAll    = "/api/admin/hints/all"
	RouteAdminHint   = "/api/admin/hints/:id"
	RouteSpinHistory = "/api/user/spin-history"
	RouteHealthz     = "/healthz"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

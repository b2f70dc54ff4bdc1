package api

import (
	"strings"

	"learnhub/internal/config"
	"learnhub/internal/domain"
)

const (
	PermReadCatalog   = "read:catalog"
	PermWriteBookings = "write:bookings"
	PermWriteOrders   = "write:orders"
	PermAdmin         = "admin"
)

// RoleAdmin is the bearer token role that opens admin routes.
const RoleAdmin = "admin"

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"
)

// hasPermission treats an empty permission list as allow-all. The admin
// permission satisfies every other one.
func hasPermission(client config.APIClientKey, required string) bool {
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		p = strings.TrimSpace(p)
		if p == required || p == PermAdmin {
			return true
		}
	}
	return false
}

func isAdmin(who domain.Requester) bool {
	return strings.EqualFold(strings.TrimSpace(who.Role), RoleAdmin)
}

func headerName(configured, fallback string) string {
	if h := strings.ToLower(strings.TrimSpace(configured)); h != "" {
		return h
	}
	return fallback
}

func indexClients(keys []config.APIClientKey) map[string]config.APIClientKey {
	m := make(map[string]config.APIClientKey, len(keys))
	for _, k := range keys {
		m[k.Key] = k
	}
	return m
}

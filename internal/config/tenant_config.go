package config

import "strings"

type TenantConfig interface {
	GetMultiTenantEnabled() bool
	GetDefaultTenantID() string
}

type Tenancy struct{}

var _ TenantConfig = Tenancy{}

func (Tenancy) GetMultiTenantEnabled() bool {
	v := strings.ToLower(GetEnv("MULTI_TENANT_ENABLED", "false"))
	return v == "true" || v == "1" || v == "yes"
}

func (Tenancy) GetDefaultTenantID() string {
	return GetEnv("DEFAULT_TENANT_ID", "default")
}

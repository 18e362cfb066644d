package models

import "time"

// Tenant is an isolated customer of the platform. The core only reads it.
type Tenant struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:64"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Tenant) TableName() string { return "tenants" }

// TenantSymbol is a watchlist entry: a tenant's subscription to a symbol.
type TenantSymbol struct {
	ID        int64 `gorm:"primaryKey"`
	TenantID  int64 `gorm:"index:idx_tenant_symbol,unique"`
	SymbolID  int64 `gorm:"index:idx_tenant_symbol,unique"`
	Priority  int
	Notes     string `gorm:"size:256"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TenantSymbol) TableName() string { return "tenant_symbols" }

// ConfigParam is one tenant-scoped configuration key with a typed value.
// Exactly one of the typed columns is set, per ValueType.
type ConfigParam struct {
	ID          int64  `gorm:"primaryKey"`
	TenantID    int64  `gorm:"index:idx_cfg_key,unique"`
	Key         string `gorm:"index:idx_cfg_key,unique;size:64"`
	ValueType   string `gorm:"size:16"`
	StringValue *string
	IntValue    *int64
	FloatValue  *float64
	BoolValue   *bool
	UpdatedAt   time.Time
}

func (ConfigParam) TableName() string { return "config_params" }

// Principal describes the caller of a batch or query operation.
// Privileged callers bypass watchlist scoping.
type Principal struct {
	TenantID   int64
	Privileged bool
}

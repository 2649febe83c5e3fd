package config

import (
	"context"
	"reflect"
	"strings"

	"github.com/mmdatafocus/invoice_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantColumn = "business_id"

// TenantGuardPlugin scopes reads, updates and deletes to the request's business
// when the model carries a business_id column, and stamps business_id on inserts
// that left it blank.
//
// Raw SQL is not rewritten. Queries built with Raw/Exec must filter business_id themselves.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantScopeCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantScopeCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantScopeCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantScopeCallback); err != nil {
		return err
	}
	if err := db.Callback().Create().Before("gorm:create").Register("tenant_guard:create", tenantStampCallback); err != nil {
		return err
	}
	return nil
}

func tenantField(db *gorm.DB) *schema.Field {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return nil
	}
	return db.Statement.Schema.LookUpField(tenantColumn)
}

func tenantScopeCallback(db *gorm.DB) {
	businessId, ok := tenantFromStatement(db)
	if !ok || tenantField(db) == nil {
		return
	}
	if whereHasBusinessID(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn},
				Value:  businessId,
			},
		},
	})
}

func tenantStampCallback(db *gorm.DB) {
	businessId, ok := tenantFromStatement(db)
	if !ok {
		return
	}
	field := tenantField(db)
	if field == nil || field.FieldType.Kind() != reflect.String {
		return
	}
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			stampTenant(db.Statement.Context, field, rv.Index(i), businessId)
		}
	case reflect.Struct:
		stampTenant(db.Statement.Context, field, rv, businessId)
	}
}

func stampTenant(ctx context.Context, field *schema.Field, rv reflect.Value, businessId string) {
	if _, zero := field.ValueOf(ctx, rv); zero {
		_ = field.Set(ctx, rv, businessId)
	}
}

func tenantFromStatement(db *gorm.DB) (string, bool) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return "", false
	}
	ctx := db.Statement.Context
	if skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); skip {
		return "", false
	}
	businessId, _ := appctx.GetString(ctx, appctx.ContextKeyBusinessId)
	if strings.TrimSpace(businessId) == "" {
		return "", false
	}
	return businessId, true
}

func whereHasBusinessID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasBusinessID(e) {
			return true
		}
	}
	return false
}

func exprHasBusinessID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsBusinessID(v.Column)
	case clause.IN:
		return colIsBusinessID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasBusinessID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	default:
		return false
	}
}

func colIsBusinessID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	default:
		return false
	}
}

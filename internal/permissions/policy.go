// Package permissions decides which fields each role may write on each
// resource. The policy is plain data built once at startup.
package permissions

import (
	"slices"

	"accounting/internal/core"
)

// Policy maps resource and role to the ordered list of editable fields.
type Policy struct {
	fields map[core.Resource]map[core.Role][]string
}

// Validation is the outcome of checking a set of fields against the policy.
type Validation struct {
	Allowed      bool     `json:"allowed"`
	DeniedFields []string `json:"denied_fields"`
}

// Metadata describes the caller's editing rights for read responses.
type Metadata struct {
	EditableFields []string  `json:"editable_fields"`
	EditingEnabled bool      `json:"editing_enabled"`
	UserRole       core.Role `json:"user_role"`
}

// NewPolicy builds a policy from a table. Field lists are copied.
func NewPolicy(table map[core.Resource]map[core.Role][]string) *Policy {
	p := &Policy{fields: make(map[core.Resource]map[core.Role][]string, len(table))}
	for res, roles := range table {
		p.fields[res] = make(map[core.Role][]string, len(roles))
		for role, fields := range roles {
			p.fields[res][role] = slices.Clone(fields)
		}
	}
	return p
}

// DefaultPolicy is the production table. Admins edit every business field;
// users may only write petty expenses.
func DefaultPolicy() *Policy {
	petty := []string{"description", "amount", "category", "expense_date"}
	return NewPolicy(map[core.Resource]map[core.Role][]string{
		core.ResourceBills: {
			core.RoleAdmin: {"vendor", "bill_number", "amount", "bill_date", "due_date", "description",
				"status", "card_id", "category_id", "attachment_url", "attachment_type"},
		},
		core.ResourceCards: {
			core.RoleAdmin: {"card_number", "card_holder", "card_type", "bank", "expiry_date",
				"card_limit", "balance", "is_active"},
		},
		core.ResourceCashTransactions: {
			core.RoleAdmin: {"transaction_date", "description", "amount", "transaction_type",
				"category", "category_id", "notes"},
		},
		core.ResourceEmployees: {
			core.RoleAdmin: {"first_name", "last_name", "email", "designation", "department_id",
				"base_salary", "join_date", "is_active"},
		},
		core.ResourceSalaries: {
			core.RoleAdmin: {"employee_id", "month", "base_salary", "allowances", "deductions",
				"net_salary", "status", "paid_date"},
		},
		core.ResourcePettyExpenses: {
			core.RoleAdmin: petty,
			core.RoleUser:  petty,
		},
		core.ResourceBudgets: {
			core.RoleAdmin: {"category_id", "category_name", "budget_limit", "spent", "period",
				"month", "is_active"},
		},
		core.ResourceReminders: {
			core.RoleAdmin: {"title", "description", "reminder_date", "reminder_time", "type",
				"related_id", "notification_methods", "recipients", "is_active"},
		},
	})
}

// EditableFields returns a copy of the fields role may write on resource.
// Unknown resources and roles get an empty list.
func (p *Policy) EditableFields(role core.Role, resource core.Resource) []string {
	return slices.Clone(p.fields[resource][role])
}

func (p *Policy) IsResourceEditable(role core.Role, resource core.Resource) bool {
	return len(p.fields[resource][role]) > 0
}

func (p *Policy) CanEditField(role core.Role, resource core.Resource, field string) bool {
	return slices.Contains(p.fields[resource][role], field)
}

// FilterToEditable keeps only the keys of patch role may write. The result is
// empty, never nil, when nothing is editable.
func (p *Policy) FilterToEditable(role core.Role, resource core.Resource, patch map[string]any) map[string]any {
	out := make(map[string]any)
	for _, f := range p.fields[resource][role] {
		if v, ok := patch[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Validate reports the fields role may not write, in the order given.
func (p *Policy) Validate(role core.Role, resource core.Resource, fields []string) Validation {
	allowed := p.fields[resource][role]
	denied := []string{}
	for _, f := range fields {
		if !slices.Contains(allowed, f) {
			denied = append(denied, f)
		}
	}
	return Validation{Allowed: len(denied) == 0, DeniedFields: denied}
}

// Describe builds the read metadata for role on resource.
func (p *Policy) Describe(role core.Role, resource core.Resource) Metadata {
	fields := p.EditableFields(role, resource)
	if fields == nil {
		fields = []string{}
	}
	return Metadata{
		EditableFields: fields,
		EditingEnabled: len(fields) > 0,
		UserRole:       role,
	}
}

// Check validates a write and returns a PermissionError when it is refused.
func (p *Policy) Check(role core.Role, resource core.Resource, fields []string) error {
	if !p.IsResourceEditable(role, resource) {
		return &core.PermissionError{Message: "Edit access denied"}
	}
	v := p.Validate(role, resource, fields)
	if !v.Allowed {
		return &core.PermissionError{
			Message:       "Field edit access denied",
			DeniedFields:  v.DeniedFields,
			AllowedFields: p.EditableFields(role, resource),
		}
	}
	return nil
}

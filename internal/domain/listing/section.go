// Package listing describes the dashboard sections and how their rows are
// displayed.
package listing

import (
	"encoding/json"
	"fmt"

	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/erp/dashboard/internal/domain/shared/valueobject"
)

// ColumnKind selects the formatter of a column
type ColumnKind string

const (
	KindText     ColumnKind = "text"
	KindMoney    ColumnKind = "money"
	KindQuantity ColumnKind = "quantity"
)

// ErrUnknownSection is returned for a section key that is not configured
var ErrUnknownSection = shared.NewDomainError("SECTION_NOT_FOUND", "Dashboard section not found")

// Column is one table column of a section
type Column struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Kind  ColumnKind `json:"kind"`
}

// Format renders a raw cell value for display
func (c Column) Format(v any) string {
	switch c.Kind {
	case KindMoney:
		return valueobject.FormatCurrency(v)
	case KindQuantity:
		return valueobject.FormatQuantity(v)
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Section is a dashboard area backed by one upstream resource
type Section struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Resource string   `json:"resource"`
	Columns  []Column `json:"columns"`
}

// Row is one upstream record keyed by field name
type Row map[string]any

// Listing is the display-ready content of a section
type Listing struct {
	Section Section    `json:"section"`
	Rows    [][]string `json:"rows"`
	Warning string     `json:"warning,omitempty"`
}

// Render formats rows for the section's columns. Missing fields render as
// the formatter's nil value.
func (s Section) Render(rows []Row) Listing {
	out := Listing{Section: s, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		cells := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			cells[i] = c.Format(r[c.Key])
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// Catalog is the fixed set of sections, in sidebar order
type Catalog struct {
	sections []Section
	byKey    map[string]Section
}

// NewCatalog indexes sections by key
func NewCatalog(sections []Section) *Catalog {
	c := &Catalog{
		sections: make([]Section, len(sections)),
		byKey:    make(map[string]Section, len(sections)),
	}
	copy(c.sections, sections)
	for _, s := range sections {
		c.byKey[s.Key] = s
	}
	return c
}

// Get returns the section named key
func (c *Catalog) Get(key string) (Section, error) {
	s, ok := c.byKey[key]
	if !ok {
		return Section{}, ErrUnknownSection
	}
	return s, nil
}

// Sections returns the sections in order
func (c *Catalog) Sections() []Section {
	cp := make([]Section, len(c.sections))
	copy(cp, c.sections)
	return cp
}

// DefaultSections lists the warehouse dashboard areas
func DefaultSections() []Section {
	return []Section{
		{
			Key: "invoices", Title: "Invoices", Resource: "trade/sales-orders",
			Columns: []Column{
				{Key: "order_number", Label: "Number", Kind: KindText},
				{Key: "customer_name", Label: "Customer", Kind: KindText},
				{Key: "item_count", Label: "Items", Kind: KindQuantity},
				{Key: "total_amount", Label: "Total", Kind: KindMoney},
				{Key: "status", Label: "Status", Kind: KindText},
			},
		},
		{
			Key: "imports", Title: "Imports", Resource: "trade/purchase-orders",
			Columns: []Column{
				{Key: "order_number", Label: "Number", Kind: KindText},
				{Key: "supplier_name", Label: "Supplier", Kind: KindText},
				{Key: "item_count", Label: "Items", Kind: KindQuantity},
				{Key: "total_amount", Label: "Total", Kind: KindMoney},
				{Key: "status", Label: "Status", Kind: KindText},
			},
		},
		{
			Key: "inventory", Title: "Inventory", Resource: "inventory/items",
			Columns: []Column{
				{Key: "product_name", Label: "Product", Kind: KindText},
				{Key: "warehouse_name", Label: "Warehouse", Kind: KindText},
				{Key: "available_quantity", Label: "Available", Kind: KindQuantity},
				{Key: "unit_cost", Label: "Unit cost", Kind: KindMoney},
			},
		},
		{
			Key: "suppliers", Title: "Suppliers", Resource: "partner/suppliers",
			Columns: []Column{
				{Key: "code", Label: "Code", Kind: KindText},
				{Key: "name", Label: "Name", Kind: KindText},
				{Key: "phone", Label: "Phone", Kind: KindText},
				{Key: "balance", Label: "Balance", Kind: KindMoney},
			},
		},
		{
			Key: "customers", Title: "Customers", Resource: "partner/customers",
			Columns: []Column{
				{Key: "code", Label: "Code", Kind: KindText},
				{Key: "name", Label: "Name", Kind: KindText},
				{Key: "phone", Label: "Phone", Kind: KindText},
				{Key: "balance", Label: "Balance", Kind: KindMoney},
			},
		},
		{
			Key: "users", Title: "Users", Resource: "identity/users",
			Columns: []Column{
				{Key: "username", Label: "Username", Kind: KindText},
				{Key: "display_name", Label: "Name", Kind: KindText},
				{Key: "email", Label: "Email", Kind: KindText},
				{Key: "status", Label: "Status", Kind: KindText},
			},
		},
		{
			Key: "expenses", Title: "Expense reports", Resource: "finance/expenses",
			Columns: []Column{
				{Key: "expense_number", Label: "Number", Kind: KindText},
				{Key: "category", Label: "Category", Kind: KindText},
				{Key: "amount", Label: "Amount", Kind: KindMoney},
				{Key: "status", Label: "Status", Kind: KindText},
			},
		},
	}
}

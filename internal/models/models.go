// Package models declares the GORM entities of the solar EPC back office.
package models

// All returns every model in dependency order, parents before children.
func All() []any {
	return []any{
		&Permission{}, &Profile{}, &User{},
		&CompanySettings{},
		&Client{}, &Inquiry{}, &Item{},
		&Quotation{}, &QuotationVersion{}, &QuotationItem{},
		&Document{}, &Task{}, &TokenAccess{},
	}
}

package models

import "github.com/shopspring/decimal"

// UOM is a unit of measure row from the item master. Column names follow the
// item master so payloads match what the console already renders.
type UOM struct {
	Code        string          `db:"IUNMSR" json:"IUNMSR"`
	Description string          `db:"IUMDSC" json:"IUMDSC"`
	PackFactor  decimal.Decimal `db:"IBYFAC" json:"IBYFAC"`
}

// SellingUOM is a unit the item can be sold in.
type SellingUOM struct {
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`
}

// Department is a merchandise department.
type Department struct {
	Code string `db:"dept" json:"dept"`
	Name string `db:"deptnm" json:"deptnm"`
}

// SubDepartment belongs to a department.
type SubDepartment struct {
	Dept string `db:"dept" json:"dept"`
	Code string `db:"sdept" json:"sdept"`
	Name string `db:"sdeptnm" json:"sdeptnm"`
}

// Store is a selling location.
type Store struct {
	StoreCode string `db:"store_code" json:"store_code"`
	StoreName string `db:"store_name" json:"store_name"`
}

// StoreCodeValidation splits submitted store codes into known and unknown.
type StoreCodeValidation struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

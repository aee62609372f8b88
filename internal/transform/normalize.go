// Package transform builds the denormalized SalesFact table from the
// extracted Northwind tables.
//
// The stage is a pure function of its input tables: inputs are never
// mutated, and the same inputs always produce the same output rows in the
// same order.
package transform

import (
	"strings"

	"salesetl/internal/table"
)

// columnRenames maps the lower-camel names used by flat-file exports onto the
// Pascal-case names used by the relational schema.
var columnRenames = map[string]string{
	"orderID":        "OrderID",
	"customerID":     "CustomerID",
	"employeeID":     "EmployeeID",
	"productID":      "ProductID",
	"categoryID":     "CategoryID",
	"supplierID":     "SupplierID",
	"shipperID":      "ShipperID",
	"orderDate":      "OrderDate",
	"requiredDate":   "RequiredDate",
	"shippedDate":    "ShippedDate",
	"shipVia":        "ShipVia",
	"freight":        "Freight",
	"shipName":       "ShipName",
	"shipAddress":    "ShipAddress",
	"shipCity":       "ShipCity",
	"shipRegion":     "ShipRegion",
	"shipPostalCode": "ShipPostalCode",
	"shipCountry":    "ShipCountry",
	"unitsInStock":   "UnitsInStock",
	"unitPrice":      "UnitPrice",
	"quantity":       "Quantity",
	"discount":       "Discount",
	"companyName":    "CompanyName",
	"categoryName":   "CategoryName",
	"productName":    "ProductName",
	"contactName":    "ContactName",
	"contactTitle":   "ContactTitle",
}

// NormalizeColumns returns a copy of t with column names trimmed and then
// renamed to the canonical convention. Unknown names pass through.
func NormalizeColumns(t *table.Table) *table.Table {
	out := t.Clone()
	out.TrimColumnNames()
	out.Rename(columnRenames)
	return out
}

// CanonicalColumn returns the name NormalizeColumns gives to a column.
func CanonicalColumn(name string) string {
	name = strings.TrimSpace(name)
	if to, ok := columnRenames[name]; ok {
		return to
	}
	return name
}

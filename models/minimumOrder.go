package models

import "github.com/shopspring/decimal"

type MinimumOrderLine struct {
	SupplierId   int             `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Minimum      decimal.Decimal `json:"minimum"`
	Passes       bool            `json:"passes"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

type MinimumOrderReport struct {
	Lines []MinimumOrderLine `json:"lines"`
}

// ValidateMinimums checks every group's subtotal against its supplier's minimum order value.
// shortfall = max(0, minimum - subtotal).
func ValidateMinimums(groups *SupplierGroups) *MinimumOrderReport {
	report := &MinimumOrderReport{Lines: make([]MinimumOrderLine, 0, len(groups.Groups))}
	for _, g := range groups.Groups {
		shortfall := decimal.Max(decimal.Zero, g.MinimumOrderValue.Sub(g.Subtotal))
		report.Lines = append(report.Lines, MinimumOrderLine{
			SupplierId:   g.SupplierId,
			SupplierName: g.SupplierName,
			Subtotal:     g.Subtotal,
			Minimum:      g.MinimumOrderValue,
			Passes:       shortfall.IsZero(),
			Shortfall:    shortfall,
		})
	}
	return report
}

// AllPass is true only when every supplier meets its minimum.
func (r *MinimumOrderReport) AllPass() bool {
	for _, line := range r.Lines {
		if !line.Passes {
			return false
		}
	}
	return true
}

func (r *MinimumOrderReport) Failing() []MinimumOrderLine {
	var failing []MinimumOrderLine
	for _, line := range r.Lines {
		if !line.Passes {
			failing = append(failing, line)
		}
	}
	return failing
}

func (r *MinimumOrderReport) Line(supplierId int) (*MinimumOrderLine, bool) {
	for i := range r.Lines {
		if r.Lines[i].SupplierId == supplierId {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

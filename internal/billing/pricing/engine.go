package pricing

import (
	"github.com/shopspring/decimal"

	billing "gas-billing/internal/billing/domain"
	referencedata "gas-billing/internal/referencedata/domain"
)

// MoneyScale is the number of decimals of every monetary amount.
const MoneyScale = 2

const (
	descriptionFixedTerm    = "Término fijo"
	descriptionVariableTerm = "Término variable"
)

// Priced is the outcome of pricing one invoice.
type Priced struct {
	Lines []billing.InvoiceLine
	Base  decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// Price builds the fixed, variable and tax lines. Each line amount is
// rounded half-to-even when computed; totals are sums of rounded lines.
func Price(energyKWh decimal.Decimal, tariff referencedata.Tariff, tax referencedata.Tax) Priced {
	one := decimal.NewFromInt(1)

	fixed := billing.InvoiceLine{
		Type:        billing.LineFixedTerm,
		Description: descriptionFixedTerm,
		Quantity:    one,
		UnitPrice:   tariff.FixedTermPerMonth,
		Amount:      roundMoney(tariff.FixedTermPerMonth),
	}
	variable := billing.InvoiceLine{
		Type:        billing.LineVariableTerm,
		Description: descriptionVariableTerm,
		Quantity:    energyKWh,
		UnitPrice:   tariff.VariableTermPerKWh,
		Amount:      roundMoney(energyKWh.Mul(tariff.VariableTermPerKWh)),
	}
	base := fixed.Amount.Add(variable.Amount)

	taxLine := billing.InvoiceLine{
		Type:        billing.LineTax,
		Description: taxDescription(tax),
		Quantity:    one,
		UnitPrice:   tax.Rate,
		Amount:      roundMoney(base.Mul(tax.Rate)),
	}

	return Priced{
		Lines: []billing.InvoiceLine{fixed, variable, taxLine},
		Base:  base,
		Tax:   taxLine.Amount,
		Total: base.Add(taxLine.Amount),
	}
}

func roundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(MoneyScale)
}

func taxDescription(tax referencedata.Tax) string {
	percent := tax.Rate.Mul(decimal.NewFromInt(100))
	return tax.Code + " " + percent.String() + "%"
}

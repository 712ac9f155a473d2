package dto

import (
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/money"
)

// MoneyDTO carries amounts as decimal strings fixed to the currency's minor unit.
type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount.StringFixed(money.MinorUnits(value.Currency)),
		Currency: value.Currency,
	}
}

func (m MoneyDTO) Money() (money.Money, error) {
	return money.Parse(m.Amount, m.Currency)
}

type PriceBreakdown struct {
	Nights              int      `json:"nights"`
	Nightly             MoneyDTO `json:"price_per_night"`
	BaseTotal           MoneyDTO `json:"base_total"`
	ExtraGuestSurcharge MoneyDTO `json:"extra_guest_surcharge"`
	ServiceFee          MoneyDTO `json:"service_fee"`
	GrandTotal          MoneyDTO `json:"grand_total"`
	Deposit             MoneyDTO `json:"deposit"`
	Remaining           MoneyDTO `json:"remaining"`
}

func MapPriceBreakdown(p pricing.PriceBreakdown) PriceBreakdown {
	return PriceBreakdown{
		Nights:              p.Nights,
		Nightly:             MapMoney(p.Nightly),
		BaseTotal:           MapMoney(p.BaseTotal),
		ExtraGuestSurcharge: MapMoney(p.ExtraGuestSurcharge),
		ServiceFee:          MapMoney(p.ServiceFee),
		GrandTotal:          MapMoney(p.GrandTotal),
		Deposit:             MapMoney(p.Deposit),
		Remaining:           MapMoney(p.Remaining),
	}
}

// Domain parses the breakdown back into domain money; stores persist quotes in this form.
func (p PriceBreakdown) Domain() (pricing.PriceBreakdown, error) {
	var out pricing.PriceBreakdown
	out.Nights = p.Nights
	fields := []struct {
		src MoneyDTO
		dst *money.Money
	}{
		{p.Nightly, &out.Nightly},
		{p.BaseTotal, &out.BaseTotal},
		{p.ExtraGuestSurcharge, &out.ExtraGuestSurcharge},
		{p.ServiceFee, &out.ServiceFee},
		{p.GrandTotal, &out.GrandTotal},
		{p.Deposit, &out.Deposit},
		{p.Remaining, &out.Remaining},
	}
	for _, f := range fields {
		m, err := f.src.Money()
		if err != nil {
			return pricing.PriceBreakdown{}, err
		}
		*f.dst = m
	}
	return out, nil
}

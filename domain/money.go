package domain

import "fmt"

// Money is a currency-tagged amount in minor units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// NewMoney creates a money value
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Add returns the sum of two amounts with the same currency
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, &Error{
			Code:    ErrCodeCurrencyMismatch,
			Message: fmt.Sprintf("cannot add %s to %s", other.Currency, m.Currency),
		}
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Mul returns the amount multiplied by a quantity
func (m Money) Mul(quantity int) Money {
	return Money{Amount: m.Amount * int64(quantity), Currency: m.Currency}
}

// IsNegative reports whether the amount is below zero
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in centavos (minor units of the quetzal). No floats.
type Money int64

// Quetzales builds Money from a whole quetzal amount.
func Quetzales(q int64) Money { return Money(q * 100) }

// ParseMoney parses a decimal quetzal amount such as "60", "60.5" or "60.50".
func ParseMoney(s string) (Money, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return Money(math.Round(f * 100)), nil
}

func (m Money) IsPositive() bool { return m > 0 }

// Float returns the amount in quetzales, used only at the wire boundary.
func (m Money) Float() float64 { return float64(m) / 100 }

// String renders the amount the way the console shows it, e.g. "Q60.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%sQ%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a quetzal decimal number, as the API expects.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts JSON numbers, numeric strings and null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		v, err := ParseMoney(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	v, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

package validation

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"ledgerpipe/internal/dateutils"
	"ledgerpipe/internal/moneyutils"
)

// The transform executor hands rows back exactly as the database driver
// scanned them, so every field can arrive as a string, a numeric driver
// type, a time.Time or raw bytes depending on how the template wrote its
// select list. The coercers below absorb that variety.

func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case []byte:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

func coerceDecimal(v any, decimalSeparator string) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("is required")
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case pgtype.Numeric:
		return numericToDecimal(n)
	case *pgtype.Numeric:
		if n == nil {
			return decimal.Zero, fmt.Errorf("is required")
		}
		return numericToDecimal(*n)
	case []byte:
		return moneyutils.Parse(string(n), decimalSeparator)
	case string:
		return moneyutils.Parse(n, decimalSeparator)
	default:
		return decimal.Zero, fmt.Errorf("must be a number")
	}
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, fmt.Errorf("is required")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("must be a finite number")
	}
	if n.Int == nil {
		n.Int = big.NewInt(0)
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// coerceDate normalizes a value to an ISO YYYY-MM-DD string, trying the
// template's declared date format before the common fallbacks.
func coerceDate(v any, pattern string) (string, error) {
	switch d := v.(type) {
	case nil:
		return "", fmt.Errorf("is required")
	case time.Time:
		return d.Format(dateutils.DateLayoutISO), nil
	case *time.Time:
		if d == nil {
			return "", fmt.Errorf("is required")
		}
		return d.Format(dateutils.DateLayoutISO), nil
	case pgtype.Date:
		if !d.Valid {
			return "", fmt.Errorf("is required")
		}
		return d.Time.Format(dateutils.DateLayoutISO), nil
	case string:
		return dateutils.ToISO(d, pattern)
	case []byte:
		return dateutils.ToISO(string(d), pattern)
	default:
		return "", fmt.Errorf("must be a date")
	}
}

// isEmpty reports whether a value is nil or blank text.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := coerceString(v)
	return ok && strings.TrimSpace(s) == ""
}

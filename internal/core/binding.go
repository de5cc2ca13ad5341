package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// BindParameters binds the period tokens positionally to a procedure's
// declared parameters: the first parameter receives start, the second
// receives end. Parameters beyond the second bind NULL when optional.
//
// Unlike file naming, a malformed token here is an error, never a default.
func BindParameters(spec ProcedureSpec, start, end string) ([]any, error) {
	tokens := []string{start, end}
	args := make([]any, 0, len(spec.Parameters))

	for i, p := range spec.Parameters {
		if i >= len(tokens) {
			if p.Required {
				return nil, fmt.Errorf("parameter %s is required but only %d period values are available", p.Name, len(tokens))
			}
			args = append(args, nil)
			continue
		}

		v, err := bindValue(p, tokens[i])
		if err != nil {
			return nil, fmt.Errorf("parameter %s (%s): %w", p.Name, p.Type, err)
		}
		args = append(args, v)
	}

	return args, nil
}

func bindValue(p ParamSpec, token string) (any, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if p.Required {
			return nil, fmt.Errorf("value is required")
		}
		return nil, nil
	}

	switch p.Type {
	case ParamInt:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", token)
		}
		return n, nil

	case ParamDate:
		t, err := time.Parse(PeriodLayout, token)
		if err != nil {
			t, err = time.Parse("2006-01-02", token)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYYMMDD", token)
		}
		return pgtype.Date{Time: t, Valid: true}, nil

	case ParamDecimal:
		var n pgtype.Numeric
		if err := n.Scan(token); err != nil {
			return nil, fmt.Errorf("invalid decimal %q", token)
		}
		return n, nil

	default:
		return token, nil
	}
}

package store

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/ans-sync/internal/ans"
)

const maxWarnings = 20

// recordSource streams decoded CSV records into a bulk load. Records that fail to
// decode are skipped and remembered as warnings. It satisfies db.RowSource.
type recordSource struct {
	r      *ans.Reader
	decode func(rec []string) ([]any, error)

	vals     []any
	err      error
	read     int64
	rejected int64
	warnings []string
	dropped  int
}

func openSource(path, encoding string, decode func([]string) ([]any, error)) (*recordSource, error) {
	r, err := ans.OpenReader(path, ans.ReaderOptions{Encoding: encoding})
	if err != nil {
		return nil, err
	}
	return &recordSource{r: r, decode: decode}, nil
}

func (s *recordSource) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		rec, err := s.r.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		s.read++

		vals, err := s.decode(rec)
		if err != nil {
			s.rejected++
			s.warn(fmt.Sprintf("line %d: %v", s.r.Line(), err))
			continue
		}
		s.vals = vals
		return true
	}
}

func (s *recordSource) Values() ([]any, error) { return s.vals, nil }

func (s *recordSource) Err() error { return s.err }

func (s *recordSource) Close() error { return s.r.Close() }

func (s *recordSource) warn(msg string) {
	if len(s.warnings) < maxWarnings {
		s.warnings = append(s.warnings, msg)
		return
	}
	s.dropped++
}

// report builds the LoadReport for a finished load that inserted inserted rows.
func (s *recordSource) report(path string, inserted int64, extra ...string) LoadReport {
	rep := LoadReport{
		File:     path,
		Read:     s.read,
		Inserted: inserted,
		Rejected: s.read - inserted,
		Warnings: append(append([]string(nil), s.warnings...), extra...),
	}
	if rep.Rejected < 0 {
		rep.Rejected = 0
	}
	if s.dropped > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d more warnings not shown", s.dropped))
	}
	return rep
}

// codec converts typed values into what a driver accepts for the target columns.
type codec struct {
	date    func(time.Time) any
	decimal func(decimal.Decimal) any
}

func (c codec) operatorRow(op ans.Operator) []any {
	return []any{
		op.RegistryCode,
		text(op.CNPJ),
		text(op.LegalName),
		text(op.TradeName),
		text(op.Modality),
		text(op.Street),
		text(op.Number),
		text(op.Complement),
		text(op.Neighborhood),
		text(op.City),
		text(op.State),
		text(op.PostalCode),
		text(op.AreaCode),
		text(op.Phone),
		text(op.Fax),
		text(op.Email),
		text(op.Representative),
		text(op.RepresentativeTitle),
		text(op.MarketRegion),
		c.optDate(op.RegisteredAt),
	}
}

func (c codec) statementRow(st ans.Statement) []any {
	return []any{
		c.date(st.ReferenceDate),
		st.RegistryCode,
		nonEmpty(st.AccountCode),
		nonEmpty(st.Description),
		c.optDecimal(st.OpeningBalance),
		c.optDecimal(st.ClosingBalance),
	}
}

func (c codec) decodeOperator(rec []string) ([]any, error) {
	op, err := ans.OperatorFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return c.operatorRow(op), nil
}

func (c codec) decodeStatement(refDate time.Time) func([]string) ([]any, error) {
	return func(rec []string) ([]any, error) {
		st, err := ans.StatementFromRecord(rec, refDate)
		if err != nil {
			return nil, err
		}
		return c.statementRow(st), nil
	}
}

func (c codec) optDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return c.date(*t)
}

func (c codec) optDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return c.decimal(*d)
}

func text(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

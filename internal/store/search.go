package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/ans-sync/internal/ans"
)

// searchColumns are matched by Query.Text.
var searchColumns = []string{
	"razao_social",
	"nome_fantasia",
	"cnpj",
	"cidade",
	"uf",
	"modalidade",
	"endereco_eletronico",
	"representante",
}

// dialect abstracts the SQL differences between the two stores.
type dialect struct {
	placeholder func(n int) string
	like        string // case-insensitive LIKE operator
	escape      string // ESCAPE clause, if the engine needs one
}

var (
	postgresDialect = dialect{
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		like:        "ILIKE",
	}
	sqliteDialect = dialect{
		placeholder: func(int) string { return "?" },
		like:        "LIKE",
		escape:      ` ESCAPE '\'`,
	}
)

// searchSQL builds the registry search for q, which must be normalized and non-empty.
func (d dialect) searchSQL(table string, q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}

	if q.Text != "" {
		var or []string
		if code, ok := ans.ParseRegistryCode(q.Text); ok {
			or = append(or, "registro_ans = "+arg(code))
		}
		pattern := "%" + escapeLike(q.Text) + "%"
		for _, col := range searchColumns {
			or = append(or, fmt.Sprintf("%s %s %s%s", col, d.like, arg(pattern), d.escape))
		}
		conds = append(conds, "("+strings.Join(or, " OR ")+")")
	}
	if q.AreaCode != "" {
		conds = append(conds, "ddd = "+arg(q.AreaCode))
	}
	if q.Phone != "" {
		conds = append(conds, "telefone = "+arg(q.Phone))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY registro_ans LIMIT %s",
		strings.Join(ans.OperatorColumns, ", "), table, strings.Join(conds, " AND "), arg(q.Limit))
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// scanner is satisfied by pgx.Rows and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanOperator scans one row of ans.OperatorColumns. date receives the registration
// date column, whose representation differs between engines.
func scanOperator(row scanner, date any) (ans.Operator, error) {
	var op ans.Operator
	err := row.Scan(
		&op.RegistryCode,
		&op.CNPJ,
		&op.LegalName,
		&op.TradeName,
		&op.Modality,
		&op.Street,
		&op.Number,
		&op.Complement,
		&op.Neighborhood,
		&op.City,
		&op.State,
		&op.PostalCode,
		&op.AreaCode,
		&op.Phone,
		&op.Fax,
		&op.Email,
		&op.Representative,
		&op.RepresentativeTitle,
		&op.MarketRegion,
		date,
	)
	return op, err
}

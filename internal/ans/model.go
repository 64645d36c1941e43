// Package ans models the ANS open-data registry of health-plan operators and the
// quarterly accounting statements they file, and holds the field-level rules that turn
// the portal's loosely-typed CSV text into typed rows.
package ans

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operator is one row of the operator registry (Relatorio_cadop), keyed by its ANS
// registry code. Every field other than RegistryCode may be absent.
type Operator struct {
	RegistryCode        int64      `json:"registry_code"`
	CNPJ                *string    `json:"cnpj"`
	LegalName           *string    `json:"legal_name"`
	TradeName           *string    `json:"trade_name"`
	Modality            *string    `json:"modality"`
	Street              *string    `json:"street"`
	Number              *string    `json:"number"`
	Complement          *string    `json:"complement"`
	Neighborhood        *string    `json:"neighborhood"`
	City                *string    `json:"city"`
	State               *string    `json:"state"`
	PostalCode          *string    `json:"postal_code"`
	AreaCode            *string    `json:"area_code"`
	Phone               *string    `json:"phone"`
	Fax                 *string    `json:"fax"`
	Email               *string    `json:"email"`
	Representative      *string    `json:"representative"`
	RepresentativeTitle *string    `json:"representative_title"`
	MarketRegion        *string    `json:"market_region"`
	RegisteredAt        *time.Time `json:"registered_at"`
}

// Statement is one ledger line of a quarterly accounting statement. ReferenceDate comes
// from the source file name, never from the file body.
type Statement struct {
	ReferenceDate  time.Time        `json:"reference_date"`
	RegistryCode   int64            `json:"registry_code"`
	AccountCode    string           `json:"account_code"`
	Description    string           `json:"description"`
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
	ClosingBalance *decimal.Decimal `json:"closing_balance"`
}

// OperatorColumns lists the registry table columns in CSV order.
var OperatorColumns = []string{
	"registro_ans",
	"cnpj",
	"razao_social",
	"nome_fantasia",
	"modalidade",
	"logradouro",
	"numero",
	"complemento",
	"bairro",
	"cidade",
	"uf",
	"cep",
	"ddd",
	"telefone",
	"fax",
	"endereco_eletronico",
	"representante",
	"cargo_representante",
	"regiao_de_comercializacao",
	"data_registro_ans",
}

// StatementColumns lists the statement table columns written by a load.
var StatementColumns = []string{
	"trimestre_referencia",
	"registro_ans",
	"cd_conta_contabil",
	"descricao",
	"vl_saldo_inicial",
	"vl_saldo_final",
}

// Column widths of the relational schema. Values longer than these are truncated.
const (
	WidthCNPJ                = 20
	WidthLegalName           = 255
	WidthTradeName           = 255
	WidthModality            = 100
	WidthStreet              = 255
	WidthNumber              = 50
	WidthComplement          = 255
	WidthNeighborhood        = 100
	WidthCity                = 100
	WidthState               = 2
	WidthPostalCode          = 9
	WidthAreaCode            = 3
	WidthPhone               = 50
	WidthFax                 = 50
	WidthEmail               = 255
	WidthRepresentative      = 255
	WidthRepresentativeTitle = 100
	WidthMarketRegion        = 100

	WidthAccountCode = 50
	WidthDescription = 500
)

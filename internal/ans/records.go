package ans

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Positional indices of the registry CSV. The portal header names vary between
// releases, so records are read by position.
const (
	colRegistryCode = iota
	colCNPJ
	colLegalName
	colTradeName
	colModality
	colStreet
	colNumber
	colComplement
	colNeighborhood
	colCity
	colState
	colPostalCode
	colAreaCode
	colPhone
	colFax
	colEmail
	colRepresentative
	colRepresentativeTitle
	colMarketRegion
	colRegisteredAt

	operatorFieldCount
)

// Positional indices of the accounting CSV. The leading DATA column is ignored: the
// reference date comes from the file name.
const (
	colStmtDate = iota
	colStmtRegistryCode
	colStmtAccountCode
	colStmtDescription
	colStmtOpening
	colStmtClosing

	statementFieldCount
)

// OperatorFromRecord decodes one registry CSV record. Short records are padded with
// absent values; a record whose registry code is missing or non-numeric is rejected.
func OperatorFromRecord(rec []string) (Operator, error) {
	field := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	code, ok := ParseRegistryCode(field(colRegistryCode))
	if !ok {
		return Operator{}, eris.Errorf("ans: invalid registry code %q", strings.TrimSpace(field(colRegistryCode)))
	}

	return Operator{
		RegistryCode:        code,
		CNPJ:                CleanText(field(colCNPJ), WidthCNPJ),
		LegalName:           CleanText(field(colLegalName), WidthLegalName),
		TradeName:           CleanText(field(colTradeName), WidthTradeName),
		Modality:            CleanText(field(colModality), WidthModality),
		Street:              CleanText(field(colStreet), WidthStreet),
		Number:              CleanText(field(colNumber), WidthNumber),
		Complement:          CleanText(field(colComplement), WidthComplement),
		Neighborhood:        CleanText(field(colNeighborhood), WidthNeighborhood),
		City:                CleanText(field(colCity), WidthCity),
		State:               CleanText(field(colState), WidthState),
		PostalCode:          CleanCode(field(colPostalCode), WidthPostalCode),
		AreaCode:            CleanCode(field(colAreaCode), WidthAreaCode),
		Phone:               CleanCode(field(colPhone), WidthPhone),
		Fax:                 CleanCode(field(colFax), WidthFax),
		Email:               CleanText(field(colEmail), WidthEmail),
		Representative:      CleanText(field(colRepresentative), WidthRepresentative),
		RepresentativeTitle: CleanText(field(colRepresentativeTitle), WidthRepresentativeTitle),
		MarketRegion:        CleanCode(field(colMarketRegion), WidthMarketRegion),
		RegisteredAt:        ParseRegistrationDate(field(colRegisteredAt)),
	}, nil
}

// StatementFromRecord decodes one accounting CSV record stamped with refDate.
func StatementFromRecord(rec []string, refDate time.Time) (Statement, error) {
	if len(rec) < colStmtDescription+1 {
		return Statement{}, eris.Errorf("ans: statement record has %d fields, want %d", len(rec), statementFieldCount)
	}

	code, ok := ParseRegistryCode(rec[colStmtRegistryCode])
	if !ok {
		return Statement{}, eris.Errorf("ans: invalid registry code %q", strings.TrimSpace(rec[colStmtRegistryCode]))
	}

	st := Statement{
		ReferenceDate: refDate,
		RegistryCode:  code,
		AccountCode:   Truncate(strings.TrimSpace(rec[colStmtAccountCode]), WidthAccountCode),
		Description:   Truncate(strings.TrimSpace(rec[colStmtDescription]), WidthDescription),
	}
	if len(rec) > colStmtOpening {
		st.OpeningBalance = ParseBalance(rec[colStmtOpening])
	}
	if len(rec) > colStmtClosing {
		st.ClosingBalance = ParseBalance(rec[colStmtClosing])
	}
	return st, nil
}

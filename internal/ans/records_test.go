package ans

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operatorRecord() []string {
	return []string{
		"123456", "12345678000199", "OPERADORA TESTE S.A.", "TESTE SAUDE", "Medicina de Grupo",
		"RUA A", "100", "SALA 1", "CENTRO", "SAO PAULO", "SP", "54321-999.0",
		"11.0", "12345678.0", "", "contato@teste.com.br", "FULANO", "DIRETOR", "4.0", "2015-07-01",
	}
}

func TestOperatorFromRecord(t *testing.T) {
	op, err := OperatorFromRecord(operatorRecord())
	require.NoError(t, err)

	assert.Equal(t, int64(123456), op.RegistryCode)
	require.NotNil(t, op.LegalName)
	assert.Equal(t, "OPERADORA TESTE S.A.", *op.LegalName)
	require.NotNil(t, op.PostalCode)
	assert.Equal(t, "54321-999", *op.PostalCode)
	require.NotNil(t, op.AreaCode)
	assert.Equal(t, "11", *op.AreaCode)
	require.NotNil(t, op.Phone)
	assert.Equal(t, "12345678", *op.Phone)
	assert.Nil(t, op.Fax)
	require.NotNil(t, op.MarketRegion)
	assert.Equal(t, "4", *op.MarketRegion)
	require.NotNil(t, op.RegisteredAt)
	assert.Equal(t, time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC), *op.RegisteredAt)
}

func TestOperatorFromRecord_TruncatesWideCodes(t *testing.T) {
	rec := operatorRecord()
	rec[colAreaCode] = "01234"
	rec[colPhone] = strings.Repeat("9", 80)
	rec[colMarketRegion] = strings.Repeat("R", 150)

	op, err := OperatorFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "012", *op.AreaCode)
	assert.Len(t, *op.Phone, WidthPhone)
	assert.Len(t, *op.MarketRegion, WidthMarketRegion)
}

func TestOperatorFromRecord_CNPJKeepsFloatSuffix(t *testing.T) {
	rec := operatorRecord()
	rec[colCNPJ] = " 12345678000199.0 "

	op, err := OperatorFromRecord(rec)
	require.NoError(t, err)
	require.NotNil(t, op.CNPJ)
	assert.Equal(t, "12345678000199.0", *op.CNPJ)
}

func TestOperatorFromRecord_ShortRecord(t *testing.T) {
	op, err := OperatorFromRecord([]string{"42", "111"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), op.RegistryCode)
	assert.Nil(t, op.LegalName)
	assert.Nil(t, op.RegisteredAt)
}

func TestOperatorFromRecord_InvalidCode(t *testing.T) {
	rec := operatorRecord()
	rec[colRegistryCode] = "ABC"
	_, err := OperatorFromRecord(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid registry code")
}

func TestOperatorFromRecord_ZeroDate(t *testing.T) {
	rec := operatorRecord()
	rec[colRegisteredAt] = "0000-00-00"
	op, err := OperatorFromRecord(rec)
	require.NoError(t, err)
	assert.Nil(t, op.RegisteredAt)
}

func TestStatementFromRecord(t *testing.T) {
	ref := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)
	st, err := StatementFromRecord([]string{"2023-01-01", "123456", " 311 ", " RECEITAS ", "1.000,50", "-500,00"}, ref)
	require.NoError(t, err)

	assert.Equal(t, ref, st.ReferenceDate)
	assert.Equal(t, int64(123456), st.RegistryCode)
	assert.Equal(t, "311", st.AccountCode)
	assert.Equal(t, "RECEITAS", st.Description)
	require.NotNil(t, st.OpeningBalance)
	assert.True(t, decimal.RequireFromString("1000.50").Equal(*st.OpeningBalance))
	require.NotNil(t, st.ClosingBalance)
	assert.True(t, decimal.RequireFromString("-500.00").Equal(*st.ClosingBalance))
}

func TestStatementFromRecord_IgnoresDateColumn(t *testing.T) {
	ref := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	st, err := StatementFromRecord([]string{"1999-01-01", "1", "1", "X", "", "abc"}, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, st.ReferenceDate)
	assert.Nil(t, st.OpeningBalance)
	assert.Nil(t, st.ClosingBalance)
}

func TestStatementFromRecord_Truncates(t *testing.T) {
	ref := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	st, err := StatementFromRecord([]string{"", "1", strings.Repeat("9", 60), strings.Repeat("d", 600), "1", "2"}, ref)
	require.NoError(t, err)
	assert.Len(t, st.AccountCode, WidthAccountCode)
	assert.Len(t, st.Description, WidthDescription)
}

func TestStatementFromRecord_Errors(t *testing.T) {
	ref := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)

	_, err := StatementFromRecord([]string{"", "1"}, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields")

	_, err = StatementFromRecord([]string{"", "", "1", "X", "1", "2"}, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid registry code")
}

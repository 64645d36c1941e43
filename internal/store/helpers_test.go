package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/ans-sync/internal/db"
)

const operatorHeader = "Registro_ANS;CNPJ;Razao_Social;Nome_Fantasia;Modalidade;Logradouro;Numero;Complemento;Bairro;Cidade;UF;CEP;DDD;Telefone;Fax;Endereco_eletronico;Representante;Cargo_Representante;Regiao_de_Comercializacao;Data_Registro_ANS"

const statementHeader = "DATA;REG_ANS;CD_CONTA_CONTABIL;DESCRICAO;VL_SALDO_INICIAL;VL_SALDO_FINAL"

// fillerCNPJ shares no digit run with the registry codes used in tests, so text
// searches for a code only match through registro_ans.
const fillerCNPJ = "98070605000432"

// operatorLine builds a registry CSV line with the given code, name, city, area code,
// phone and registration date; the rest is filler.
func operatorLine(code, name, city, ddd, phone, registered string) string {
	return strings.Join([]string{
		code, fillerCNPJ, name, "", "Medicina de Grupo", "Rua A", "10", "", "Centro",
		city, "SP", "01000000", ddd, phone, "", "contato@example.com", "Fulano", "Diretor", "4", registered,
	}, ";")
}

func writeCSV(t *testing.T, dir, name, header string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := header + "\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// openSQLite creates a fresh database with the registry schema.
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ans.db")

	boot, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = boot.Exec(SQLiteSchema)
	require.NoError(t, err)
	require.NoError(t, boot.Close())

	sqlDB, err := db.OpenSQLite(context.Background(), path, 2, SQLiteTables)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

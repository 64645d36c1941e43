package store

import "fmt"

// PostgresSchema returns the DDL for both tables in schema. The binary never applies
// it on its own; it is printed by the schema command and used by tests.
func PostgresSchema(schema string) string {
	if schema == "" {
		schema = DefaultSchema
	}
	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.operators (
	registro_ans              INTEGER PRIMARY KEY,
	cnpj                      VARCHAR(20),
	razao_social              VARCHAR(255),
	nome_fantasia             VARCHAR(255),
	modalidade                VARCHAR(100),
	logradouro                VARCHAR(255),
	numero                    VARCHAR(50),
	complemento               VARCHAR(255),
	bairro                    VARCHAR(100),
	cidade                    VARCHAR(100),
	uf                        CHAR(2),
	cep                       VARCHAR(9),
	ddd                       VARCHAR(3),
	telefone                  VARCHAR(50),
	fax                       VARCHAR(50),
	endereco_eletronico       VARCHAR(255),
	representante             VARCHAR(255),
	cargo_representante       VARCHAR(100),
	regiao_de_comercializacao VARCHAR(100),
	data_registro_ans         DATE
);

CREATE TABLE IF NOT EXISTS %[1]s.accounting (
	id                   BIGSERIAL PRIMARY KEY,
	trimestre_referencia DATE NOT NULL,
	registro_ans         INTEGER NOT NULL
		REFERENCES %[1]s.operators (registro_ans) DEFERRABLE INITIALLY IMMEDIATE,
	cd_conta_contabil    VARCHAR(50),
	descricao            VARCHAR(500),
	vl_saldo_inicial     NUMERIC(18, 2),
	vl_saldo_final       NUMERIC(18, 2)
);

CREATE INDEX IF NOT EXISTS idx_operators_ddd_telefone ON %[1]s.operators (ddd, telefone);
CREATE INDEX IF NOT EXISTS idx_accounting_registro_trimestre ON %[1]s.accounting (registro_ans, trimestre_referencia);
`, schema)
}

// SQLiteSchema is the DDL for both tables on SQLite.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS operators (
	registro_ans              INTEGER PRIMARY KEY,
	cnpj                      TEXT,
	razao_social              TEXT,
	nome_fantasia             TEXT,
	modalidade                TEXT,
	logradouro                TEXT,
	numero                    TEXT,
	complemento               TEXT,
	bairro                    TEXT,
	cidade                    TEXT,
	uf                        TEXT,
	cep                       TEXT,
	ddd                       TEXT,
	telefone                  TEXT,
	fax                       TEXT,
	endereco_eletronico       TEXT,
	representante             TEXT,
	cargo_representante       TEXT,
	regiao_de_comercializacao TEXT,
	data_registro_ans         TEXT
);

CREATE TABLE IF NOT EXISTS accounting (
	id                   INTEGER PRIMARY KEY,
	trimestre_referencia TEXT NOT NULL,
	registro_ans         INTEGER NOT NULL REFERENCES operators (registro_ans),
	cd_conta_contabil    TEXT,
	descricao            TEXT,
	vl_saldo_inicial     TEXT,
	vl_saldo_final       TEXT
);

CREATE INDEX IF NOT EXISTS idx_operators_ddd_telefone ON operators (ddd, telefone);
CREATE INDEX IF NOT EXISTS idx_accounting_registro_trimestre ON accounting (registro_ans, trimestre_referencia);
`

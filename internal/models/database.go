package models

// ================ TRAFFIC CLASS SCHEMA ================

// TrafficClassTables lists the required tables in creation order
var TrafficClassTables = []string{
	"clase_trafico", "cidr", "puerto", "clase_cidr", "clase_puerto",
}

// ================ QUERIES ================
// Written with ? placeholders; the postgres dialect rebinds them to $N.

const (
	FindClassQuery = `
		SELECT id_clase, nombre, descripcion, tipo, activa
		FROM clase_trafico
		WHERE id_clase = ?`

	CreateClassQuery = `
		INSERT INTO clase_trafico (id_clase, nombre, descripcion, tipo, activa)
		VALUES (?, ?, ?, ?, ?)`

	UpdateClassQuery = `
		UPDATE clase_trafico
		SET nombre = ?, descripcion = ?, activa = ?
		WHERE id_clase = ?`

	ListSubnetsQuery = `
		SELECT c.direccion, c.prefijo
		FROM clase_cidr cc
		JOIN cidr c ON c.id_cidr = cc.id_cidr
		WHERE cc.id_clase = ? AND cc.grupo = ?
		ORDER BY c.id_cidr`

	FindCIDRQuery = `
		SELECT id_cidr FROM cidr
		WHERE direccion = ? AND prefijo = ?
		ORDER BY id_cidr
		LIMIT 1`

	InsertCIDRQuery = `
		INSERT INTO cidr (direccion, prefijo)
		VALUES (?, ?)
		RETURNING id_cidr`

	AddClassCIDRQuery = `
		INSERT INTO clase_cidr (id_clase, id_cidr, grupo)
		VALUES (?, ?, ?)`

	RemoveClassCIDRQuery = `
		DELETE FROM clase_cidr
		WHERE id_clase = ? AND grupo = ?
		AND id_cidr IN (SELECT id_cidr FROM cidr WHERE direccion = ? AND prefijo = ?)`

	ListPortsQuery = `
		SELECT p.numero, p.protocolo
		FROM clase_puerto cp
		JOIN puerto p ON p.id_puerto = cp.id_puerto
		WHERE cp.id_clase = ? AND cp.grupo = ?
		ORDER BY p.id_puerto`

	FindPortQuery = `
		SELECT id_puerto FROM puerto
		WHERE numero = ? AND protocolo = ?
		ORDER BY id_puerto
		LIMIT 1`

	InsertPortQuery = `
		INSERT INTO puerto (numero, protocolo)
		VALUES (?, ?)
		RETURNING id_puerto`

	AddClassPortQuery = `
		INSERT INTO clase_puerto (id_clase, id_puerto, grupo)
		VALUES (?, ?, ?)`

	RemoveClassPortQuery = `
		DELETE FROM clase_puerto
		WHERE id_clase = ? AND grupo = ?
		AND id_puerto IN (SELECT id_puerto FROM puerto WHERE numero = ? AND protocolo = ?)`
)

// ================ SCHEMA ================

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS clase_trafico (
	id_clase    INTEGER PRIMARY KEY,
	nombre      VARCHAR(32) NOT NULL DEFAULT '',
	descripcion VARCHAR(160) NOT NULL DEFAULT '',
	tipo        SMALLINT NOT NULL DEFAULT 0,
	activa      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS cidr (
	id_cidr   SERIAL PRIMARY KEY,
	direccion VARCHAR(64) NOT NULL,
	prefijo   SMALLINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS puerto (
	id_puerto SERIAL PRIMARY KEY,
	numero    INTEGER NOT NULL,
	protocolo SMALLINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS clase_cidr (
	id_clase INTEGER NOT NULL REFERENCES clase_trafico (id_clase),
	id_cidr  INTEGER NOT NULL REFERENCES cidr (id_cidr),
	grupo    CHAR(1) NOT NULL,
	PRIMARY KEY (id_clase, id_cidr, grupo)
);

CREATE TABLE IF NOT EXISTS clase_puerto (
	id_clase  INTEGER NOT NULL REFERENCES clase_trafico (id_clase),
	id_puerto INTEGER NOT NULL REFERENCES puerto (id_puerto),
	grupo     CHAR(1) NOT NULL,
	PRIMARY KEY (id_clase, id_puerto, grupo)
);`

const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS clase_trafico (
	id_clase    INTEGER PRIMARY KEY,
	nombre      TEXT NOT NULL DEFAULT '',
	descripcion TEXT NOT NULL DEFAULT '',
	tipo        INTEGER NOT NULL DEFAULT 0,
	activa      BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS cidr (
	id_cidr   INTEGER PRIMARY KEY AUTOINCREMENT,
	direccion TEXT NOT NULL,
	prefijo   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS puerto (
	id_puerto INTEGER PRIMARY KEY AUTOINCREMENT,
	numero    INTEGER NOT NULL,
	protocolo INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS clase_cidr (
	id_clase INTEGER NOT NULL REFERENCES clase_trafico (id_clase),
	id_cidr  INTEGER NOT NULL REFERENCES cidr (id_cidr),
	grupo    TEXT NOT NULL,
	PRIMARY KEY (id_clase, id_cidr, grupo)
);

CREATE TABLE IF NOT EXISTS clase_puerto (
	id_clase  INTEGER NOT NULL REFERENCES clase_trafico (id_clase),
	id_puerto INTEGER NOT NULL REFERENCES puerto (id_puerto),
	grupo     TEXT NOT NULL,
	PRIMARY KEY (id_clase, id_puerto, grupo)
);`

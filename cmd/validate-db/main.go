package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"netcop-updater/internal/database"
	"netcop-updater/internal/models"
)

type Config struct {
	Database database.Config `yaml:"database"`
}

// Expected column types per table, in postgres terms
var requiredColumns = map[string]map[string]string{
	"clase_trafico": {
		"id_clase": "integer", "nombre": "varchar", "descripcion": "varchar",
		"tipo": "integer", "activa": "boolean",
	},
	"cidr": {
		"id_cidr": "integer", "direccion": "varchar", "prefijo": "integer",
	},
	"puerto": {
		"id_puerto": "integer", "numero": "integer", "protocolo": "integer",
	},
	"clase_cidr": {
		"id_clase": "integer", "id_cidr": "integer", "grupo": "varchar",
	},
	"clase_puerto": {
		"id_clase": "integer", "id_puerto": "integer", "grupo": "varchar",
	},
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: validate-db <config.yaml>")
	}

	configData, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	store, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	fmt.Println("✅ Database connection successful")

	if err := validateSchema(store.DB(), store.Driver()); err != nil {
		log.Fatalf("❌ Schema validation failed: %v", err)
	}

	fmt.Println("✅ All schema validations passed")
}

func validateSchema(db *sql.DB, driver string) error {
	fmt.Println("\n🔍 Validating traffic class tables...")
	for _, table := range models.TrafficClassTables {
		if err := checkTable(db, driver, table); err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
		if err := checkColumns(db, driver, table, requiredColumns[table]); err != nil {
			return fmt.Errorf("table %s structure: %w", table, err)
		}
		fmt.Printf("  ✅ %s\n", table)
	}

	fmt.Println("\n🔍 Validating data integrity...")

	var userClasses int
	if err := db.QueryRow(`SELECT COUNT(*) FROM clase_trafico WHERE tipo <> 0`).Scan(&userClasses); err != nil {
		return fmt.Errorf("counting user classes: %w", err)
	}
	fmt.Printf("  📈 User customized classes (never synced): %d\n", userClasses)

	var orphanedCIDRs int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM cidr c
		LEFT JOIN clase_cidr cc ON cc.id_cidr = c.id_cidr
		WHERE cc.id_cidr IS NULL`).Scan(&orphanedCIDRs)
	if err != nil {
		return fmt.Errorf("checking unused subnets: %w", err)
	}
	if orphanedCIDRs > 0 {
		fmt.Printf("  ⚠️  Found %d subnets not referenced by any class\n", orphanedCIDRs)
	} else {
		fmt.Println("  ✅ No unused subnets")
	}

	var badGroups int
	err = db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM clase_cidr WHERE grupo NOT IN ('i', 'o')) +
		       (SELECT COUNT(*) FROM clase_puerto WHERE grupo NOT IN ('i', 'o'))`).Scan(&badGroups)
	if err != nil {
		return fmt.Errorf("checking membership groups: %w", err)
	}
	if badGroups > 0 {
		return fmt.Errorf("found %d memberships with an unknown group", badGroups)
	}
	fmt.Println("  ✅ All memberships are inside or outside")

	return nil
}

func checkTable(db *sql.DB, driver, tableName string) error {
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)`
	if driver == database.DriverSQLite {
		query = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`
	}

	var exists bool
	if err := db.QueryRow(query, tableName).Scan(&exists); err != nil {
		return fmt.Errorf("query error: %w", err)
	}
	if !exists {
		return fmt.Errorf("table does not exist")
	}
	return nil
}

func checkColumns(db *sql.DB, driver, tableName string, requiredCols map[string]string) error {
	query := `
		SELECT data_type FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		AND column_name = $2`
	if driver == database.DriverSQLite {
		query = `SELECT lower(type) FROM pragma_table_info(?) WHERE name = ?`
	}

	for colName, expectedType := range requiredCols {
		var dataType string
		err := db.QueryRow(query, tableName, colName).Scan(&dataType)
		if err == sql.ErrNoRows {
			return fmt.Errorf("column %s does not exist", colName)
		}
		if err != nil {
			return fmt.Errorf("query error for column %s: %w", colName, err)
		}

		if !isCompatibleType(dataType, expectedType) {
			return fmt.Errorf("column %s has type %s, expected compatible with %s",
				colName, dataType, expectedType)
		}
	}
	return nil
}

func isCompatibleType(actual, expected string) bool {
	compatible := map[string][]string{
		"integer": {"integer", "bigint", "smallint", "int", "int2", "int4", "int8"},
		"varchar": {"character varying", "varchar", "text", "character", "char"},
		"boolean": {"boolean", "bool"},
	}

	if expectedTypes, exists := compatible[expected]; exists {
		for _, validType := range expectedTypes {
			if actual == validType {
				return true
			}
		}
	}

	return actual == expected
}

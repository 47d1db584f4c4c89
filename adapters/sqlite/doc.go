// Package exportsqlite exports the fetched table as a SQLite database file.
//
// Each record becomes one row of a single table named after the download
// ("table_data" unless render options say otherwise). Column affinity follows
// the inferred column type: numbers are NUMERIC, booleans INTEGER 0/1, nested
// values and strings TEXT.
package exportsqlite

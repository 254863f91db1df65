// Package datarecording persists diagnostic data, such as request traces,
// into SQLite databases keyed by run id.
package datarecording

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/tebeka/atexit"
)

// A DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table shaped after a sample entry struct.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers one entry of the table's type for writing.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all buffered entries to the database.
	Flush()
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter writes data into a SQLite database.
type sqliteWriter struct {
	*sql.DB

	dbName    string
	tables    map[string]*table
	batchSize int
}

// NewDataRecorder creates a DataRecorder backed by the SQLite database at
// path (a ".sqlite3" suffix is added). Buffered data is flushed at exit.
func NewDataRecorder(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewDataRecorderWithDB creates a DataRecorder over an existing database
// connection. Tests use in-memory databases this way.
func NewDataRecorderWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

func (w *sqliteWriter) init() {
	db, err := sql.Open("sqlite3", w.dbName+".sqlite3")
	dieOnErr(err)

	w.DB = db
}

func structFields(t reflect.Type) []reflect.StructField {
	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() {
			fields = append(fields, f)
		}
	}
	return fields
}

func sqlType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64, reflect.Bool:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// CreateTable creates a table whose columns mirror the exported fields of
// the sample entry.
func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	t := reflect.TypeOf(sampleEntry)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("datarecording: sample entry must be a struct")
	}

	fields := structFields(t)
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, fmt.Sprintf("%s %s", f.Name, sqlType(f.Type)))
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);",
		tableName, strings.Join(cols, ", "))
	_, err := w.Exec(stmt)
	dieOnErr(err)

	w.tables[tableName] = &table{structType: t}
}

// InsertData buffers one entry. Entries are written in batches; call Flush
// to force them out.
func (w *sqliteWriter) InsertData(tableName string, entry any) {
	tbl, ok := w.tables[tableName]
	if !ok {
		panic(fmt.Sprintf("datarecording: table %s does not exist", tableName))
	}

	t := reflect.TypeOf(entry)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t != tbl.structType {
		panic(fmt.Sprintf(
			"datarecording: entry type %s does not match table %s",
			t, tableName))
	}

	tbl.entries = append(tbl.entries, entry)

	if len(tbl.entries) >= w.batchSize {
		w.flushTable(tableName, tbl)
	}
}

// ListTables returns the names of all created tables.
func (w *sqliteWriter) ListTables() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}
	return names
}

// Flush writes every buffered entry to the database.
func (w *sqliteWriter) Flush() {
	for name, tbl := range w.tables {
		w.flushTable(name, tbl)
	}
}

func (w *sqliteWriter) flushTable(name string, tbl *table) {
	if len(tbl.entries) == 0 {
		return
	}

	fields := structFields(tbl.structType)
	cols := make([]string, 0, len(fields))
	marks := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.Name)
		marks = append(marks, "?")
	}

	tx, err := w.Begin()
	dieOnErr(err)

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s);",
		name, strings.Join(cols, ", "), strings.Join(marks, ", ")))
	dieOnErr(err)

	for _, entry := range tbl.entries {
		v := reflect.ValueOf(entry)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}

		args := make([]any, 0, len(fields))
		for _, f := range fields {
			args = append(args, v.FieldByIndex(f.Index).Interface())
		}

		_, err = stmt.Exec(args...)
		dieOnErr(err)
	}

	dieOnErr(stmt.Close())
	dieOnErr(tx.Commit())

	tbl.entries = nil
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}

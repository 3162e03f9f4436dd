package engine

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/engine/sql"
)

// ColumnType is the declared storage class of a column.
type ColumnType int

const (
	ColInteger ColumnType = iota
	ColReal
	ColText
	ColBlob
)

func columnTypeFromSQL(name string) (ColumnType, error) {
	switch strings.ToUpper(name) {
	case "INTEGER":
		return ColInteger, nil
	case "REAL":
		return ColReal, nil
	case "TEXT":
		return ColText, nil
	case "BLOB":
		return ColBlob, nil
	}
	return 0, fmt.Errorf("engine: unknown column type %q", name)
}

type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	NotNull    bool
}

// Table describes one table: its schema and the page chain its rows live
// in. NextRowID assigns implicit values for an omitted INTEGER PRIMARY KEY.
type Table struct {
	Name      string
	Columns   []Column
	Root      int
	Last      int
	NextRowID int64
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// rowKeyColumn returns the index of an INTEGER PRIMARY KEY column, or -1
// when the table has none.
func (t *Table) rowKeyColumn() int {
	for i, c := range t.Columns {
		if c.PrimaryKey && c.Type == ColInteger {
			return i
		}
	}
	return -1
}

// Catalog is the in-memory schema registry. Only ephemeral stores exist,
// so the catalog does not persist; row data still flows through pages.
type Catalog struct {
	tables map[string]*Table
}

func newCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

func (c *Catalog) table(name string) (*Table, error) {
	t, ok := c.tables[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("engine: no such table: %s", name)
	}
	return t, nil
}

func (c *Catalog) has(name string) bool {
	_, ok := c.tables[strings.ToLower(name)]
	return ok
}

func (c *Catalog) add(t *Table) {
	c.tables[strings.ToLower(t.Name)] = t
}

// tableFromAST validates a CREATE TABLE definition against the catalog
// rules: at least one column, unique column names, at most one primary key.
func tableFromAST(def *sql.CreateTable) (*Table, error) {
	if len(def.Columns) == 0 {
		return nil, fmt.Errorf("engine: table %s has no columns", def.Name)
	}
	t := &Table{Name: def.Name, NextRowID: 1}
	seen := make(map[string]bool, len(def.Columns))
	pk := false
	for _, col := range def.Columns {
		key := strings.ToLower(col.Name)
		if seen[key] {
			return nil, fmt.Errorf("engine: duplicate column name %s in table %s", col.Name, def.Name)
		}
		seen[key] = true
		ct, err := columnTypeFromSQL(col.Type)
		if err != nil {
			return nil, err
		}
		if col.PrimaryKey {
			if pk {
				return nil, fmt.Errorf("engine: table %s has more than one primary key", def.Name)
			}
			pk = true
		}
		t.Columns = append(t.Columns, Column{
			Name:       col.Name,
			Type:       ct,
			PrimaryKey: col.PrimaryKey,
			NotNull:    col.NotNull,
		})
	}
	return t, nil
}

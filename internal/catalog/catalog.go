// Package catalog implements schema.Fetcher against live databases by
// querying their information_schema views. Each fetcher owns a
// database/sql handle and produces immutable snapshots for the cache.
package catalog

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

// Config describes a catalog connection.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schemas  []string // schemas to introspect; driver default when empty
	Options  map[string]string
}

// builder accumulates introspection rows into snapshot tables.
type builder struct {
	tables   map[string]*schema.Table
	order    []string
	routines []*schema.Routine
}

func newBuilder() *builder {
	return &builder{tables: make(map[string]*schema.Table)}
}

func (b *builder) table(schemaName, name, tableType string) {
	key := schemaName + "." + name
	if _, ok := b.tables[key]; ok {
		return
	}
	kind := schema.KindTable
	if strings.EqualFold(tableType, "VIEW") {
		kind = schema.KindView
	}
	b.tables[key] = &schema.Table{Schema: schemaName, Name: name, Kind: kind}
	b.order = append(b.order, key)
}

func (b *builder) column(schemaName, tableName string, col schema.Column) {
	t, ok := b.tables[schemaName+"."+tableName]
	if !ok {
		return
	}
	t.Columns = append(t.Columns, col)
}

func (b *builder) primaryKey(schemaName, tableName, column string) {
	t, ok := b.tables[schemaName+"."+tableName]
	if !ok {
		return
	}
	t.PrimaryKey = append(t.PrimaryKey, column)
}

func (b *builder) routine(r *schema.Routine) {
	b.routines = append(b.routines, r)
}

func (b *builder) snapshot() *schema.Snapshot {
	out := make([]*schema.Table, 0, len(b.order))
	for _, key := range b.order {
		t := b.tables[key]
		sort.SliceStable(t.Columns, func(i, j int) bool {
			return t.Columns[i].Position < t.Columns[j].Position
		})
		out = append(out, t)
	}
	return schema.NewSnapshot(out, b.routines)
}

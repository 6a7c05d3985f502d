package command

import (
	"strings"
	"sync"
)

// sqlBuilder accumulates space-separated clauses of a statement.
type sqlBuilder struct {
	sb strings.Builder
}

var builderPool = sync.Pool{
	New: func() interface{} { return &sqlBuilder{} },
}

func newSQLBuilder(estimatedLength int) *sqlBuilder {
	b := builderPool.Get().(*sqlBuilder)
	b.sb.Reset()
	b.sb.Grow(estimatedLength)
	return b
}

// WriteQuery appends raw SQL.
func (b *sqlBuilder) WriteQuery(query string) *sqlBuilder {
	b.sb.WriteString(query)
	return b
}

// Clause appends query preceded by a space unless the builder is empty.
// Empty clauses are skipped.
func (b *sqlBuilder) Clause(query string) *sqlBuilder {
	if query == "" {
		return b
	}
	if b.sb.Len() > 0 {
		b.sb.WriteByte(' ')
	}
	b.sb.WriteString(query)
	return b
}

func (b *sqlBuilder) String() string {
	return b.sb.String()
}

// Close returns the builder to the pool.
func (b *sqlBuilder) Close() {
	b.sb.Reset()
	builderPool.Put(b)
}

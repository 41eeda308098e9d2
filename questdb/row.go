package questdb

import (
	"time"

	"github.com/squadracorsepolito/candecode/dispatch"
)

type ColumnType int

const (
	ColumnTypeInt ColumnType = iota
	ColumnTypeFloat
	ColumnTypeString
)

type Column struct {
	Name  string
	Type  ColumnType
	Value any
}

func newColumn(name string, typ ColumnType, value any) *Column {
	return &Column{
		Name:  name,
		Type:  typ,
		Value: value,
	}
}

func NewIntColumn(name string, value int64) *Column {
	return newColumn(name, ColumnTypeInt, value)
}

func NewFloatColumn(name string, value float64) *Column {
	return newColumn(name, ColumnTypeFloat, value)
}

func NewStringColumn(name string, value string) *Column {
	return newColumn(name, ColumnTypeString, value)
}

type Symbol struct {
	Name  string
	Value string
}

func NewSymbol(name string, value string) *Symbol {
	return &Symbol{
		Name:  name,
		Value: value,
	}
}

// Row is a single line sent to a QuestDB table.
type Row struct {
	Table     string
	Timestamp time.Time
	Symbols   []*Symbol
	Columns   []*Column
}

func NewRow(table string, timestamp time.Time) *Row {
	return &Row{
		Table:     table,
		Timestamp: timestamp,
	}
}

func (r *Row) AddSymbol(symbol *Symbol) {
	if symbol != nil {
		r.Symbols = append(r.Symbols, symbol)
	}
}

func (r *Row) AddColumn(column *Column) {
	if column != nil {
		r.Columns = append(r.Columns, column)
	}
}

// newEventRow maps a decoded event to a row of the signal table,
// or of the unmatched table when the frame was not found.
func newEventRow(ev *dispatch.Event, cfg *Config) *Row {
	if ev.Unmatched() {
		row := NewRow(cfg.UnmatchedTable, ev.Timestamp)
		row.AddSymbol(NewSymbol("device", ev.Device))
		row.AddColumn(NewIntColumn("can_id", int64(ev.CANID)))
		return row
	}

	row := NewRow(cfg.SignalTable, ev.Timestamp)

	row.AddSymbol(NewSymbol("device", ev.Device))
	row.AddSymbol(NewSymbol("frame", ev.FrameName()))
	row.AddSymbol(NewSymbol("signal", ev.SignalName()))

	row.AddColumn(NewIntColumn("can_id", int64(ev.CANID)))
	row.AddColumn(NewIntColumn("raw_value", int64(ev.RawValue)))
	row.AddColumn(NewFloatColumn("value", ev.Value))

	if ev.HasLabel {
		row.AddColumn(NewStringColumn("label", ev.Label))
	}

	return row
}

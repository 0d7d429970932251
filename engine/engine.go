package engine

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/conf"
	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/metrics"
	"github.com/sprouterdb/sprouter/sqlparser"
	"github.com/sprouterdb/sprouter/storage/btree"
	"github.com/sprouterdb/sprouter/storage/fetcher"
)

// Result is the outcome of executing a statement. Queries carry column names
// and rows, writes carry the affected row count.
type Result struct {
	ColumnNames  []string
	Rows         [][]Value
	RowsAffected int
}

// Engine executes SQL statements against a single storage tree. Reads run
// concurrently, writes are serialized by the engine since the tree requires a
// single writer.
type Engine struct {
	writeLock        sync.Mutex
	pageFetcher      fetcher.PageFetcher
	bt               *btree.BTree
	cat              *catalog
	metrics          metrics.Factory
	stmtCounter      metrics.Counter
	parseFailCounter metrics.Counter
	rowsWrittenCount metrics.Counter
	started          bool
	startStopLock    sync.Mutex
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewEngine(cfg conf.Config, metricsFactory metrics.Factory) (*Engine, error) {
	var pf fetcher.PageFetcher
	if cfg.InMemory {
		pf = fetcher.NewInMemoryPageFetcher()
	} else {
		var err error
		pf, err = fetcher.NewFilePageFetcher(filepath.Join(cfg.DataDir, "sprouter.dat"), cfg.PageCacheFrames)
		if err != nil {
			return nil, err
		}
	}
	return &Engine{pageFetcher: pf, metrics: metricsFactory}, nil
}

func (e *Engine) Start() error {
	e.startStopLock.Lock()
	defer e.startStopLock.Unlock()
	if e.started {
		return nil
	}
	bt, err := btree.NewBTree(e.pageFetcher)
	if err != nil {
		return err
	}
	e.bt = bt
	cat, err := newCatalog(bt)
	if err != nil {
		return err
	}
	e.cat = cat
	if err := e.createCounters(); err != nil {
		return err
	}
	e.started = true
	log.Infof("engine started with %d table(s)", cat.tableCount())
	return nil
}

func (e *Engine) createCounters() error {
	if e.metrics == nil {
		e.stmtCounter = noopCounter{}
		e.parseFailCounter = noopCounter{}
		e.rowsWrittenCount = noopCounter{}
		e.bt.SetSplitCounter(noopCounter{})
		return nil
	}
	var err error
	if e.stmtCounter, err = e.metrics.CreateCounter("statements_executed_total",
		"Total number of SQL statements executed"); err != nil {
		return err
	}
	if e.parseFailCounter, err = e.metrics.CreateCounter("parse_failures_total",
		"Total number of statements that failed to parse"); err != nil {
		return err
	}
	if e.rowsWrittenCount, err = e.metrics.CreateCounter("rows_written_total",
		"Total number of rows inserted, updated or deleted"); err != nil {
		return err
	}
	splitCounter, err := e.metrics.CreateCounter("page_splits_total",
		"Total number of tree page splits")
	if err != nil {
		return err
	}
	e.bt.SetSplitCounter(splitCounter)
	return nil
}

func (e *Engine) Stop() error {
	e.startStopLock.Lock()
	defer e.startStopLock.Unlock()
	if !e.started {
		return nil
	}
	e.started = false
	return e.pageFetcher.Close()
}

// Execute parses and runs a single SQL statement.
func (e *Engine) Execute(sql string) (*Result, error) {
	if e.bt == nil {
		return nil, errors.NewInternalError("engine not started")
	}
	ast, err := sqlparser.Parse(sql)
	if err != nil {
		e.parseFailCounter.Inc()
		return nil, err
	}
	e.stmtCounter.Inc()
	switch {
	case ast.Select != nil:
		return e.executeSelect(ast.Select)
	case ast.Insert != nil:
		return e.executeInsert(ast.Insert)
	case ast.Update != nil:
		return e.executeUpdate(ast.Update)
	case ast.Delete != nil:
		return e.executeDelete(ast.Delete)
	case ast.Create != nil:
		return e.executeCreateTable(ast.Create)
	}
	return nil, errors.NewInvalidStatementError("Unsupported statement")
}

func (e *Engine) executeCreateTable(stmt *sqlparser.CreateTableStmt) (*Result, error) {
	info := &TableInfo{Name: strings.ToLower(stmt.Name)}
	var pkNames []string
	for _, opt := range stmt.Options {
		if opt.PrimaryKey != nil {
			if pkNames != nil {
				return nil, errors.NewInvalidStatementError("Multiple primary key clauses")
			}
			pkNames = opt.PrimaryKey
			continue
		}
		ct, err := opt.Column.ToColumnType()
		if err != nil {
			return nil, err
		}
		info.ColumnNames = append(info.ColumnNames, strings.ToLower(opt.Column.Name))
		info.ColumnTypes = append(info.ColumnTypes, ct)
	}
	if len(pkNames) == 0 {
		return nil, errors.NewSprouterErrorf(errors.MissingPrimaryKey, "Table %s must have a primary key", info.Name)
	}
	for _, pk := range pkNames {
		idx := info.columnIndex(strings.ToLower(pk))
		if idx == -1 {
			return nil, errors.NewUnknownColumnError(pk, info.Name)
		}
		info.PrimaryKeyCols = append(info.PrimaryKeyCols, idx)
	}

	e.writeLock.Lock()
	defer e.writeLock.Unlock()
	if err := e.cat.createTable(info); err != nil {
		return nil, err
	}
	log.Debugf("created table %s with id %d", info.Name, info.ID)
	return &Result{}, nil
}

func (e *Engine) executeInsert(stmt *sqlparser.InsertStmt) (*Result, error) {
	info, ok := e.cat.getTable(strings.ToLower(stmt.Table))
	if !ok {
		return nil, errors.NewUnknownTableError(stmt.Table)
	}

	// Map the statement's column order onto declaration order. With no column
	// list, values are taken in declaration order.
	colIndexes := make([]int, 0, len(info.ColumnNames))
	if len(stmt.Columns) == 0 {
		for i := range info.ColumnNames {
			colIndexes = append(colIndexes, i)
		}
	} else {
		for _, name := range stmt.Columns {
			idx := info.columnIndex(strings.ToLower(name))
			if idx == -1 {
				return nil, errors.NewUnknownColumnError(name, info.Name)
			}
			colIndexes = append(colIndexes, idx)
		}
	}

	e.writeLock.Lock()
	defer e.writeLock.Unlock()
	inserted := 0
	for _, tuple := range stmt.Rows {
		if len(tuple.Exprs) != len(colIndexes) {
			return nil, errors.NewWrongNumberValuesError(len(colIndexes), len(tuple.Exprs))
		}
		row := make([]Value, len(info.ColumnNames))
		for i := range row {
			row[i] = Null
		}
		for i, exprTree := range tuple.Exprs {
			expr, err := exprTree.Fold()
			if err != nil {
				return nil, err
			}
			v, err := evaluate(expr, nil)
			if err != nil {
				return nil, err
			}
			colIdx := colIndexes[i]
			coerced, err := coerceToColumn(v, info.ColumnNames[colIdx], info.ColumnTypes[colIdx])
			if err != nil {
				return nil, err
			}
			row[colIdx] = coerced
		}
		if err := e.writeRow(info, row); err != nil {
			return nil, err
		}
		inserted++
	}
	return &Result{RowsAffected: inserted}, nil
}

func (e *Engine) writeRow(info *TableInfo, row []Value) error {
	key, err := encodeTableKey(info.ID, info, row)
	if err != nil {
		return err
	}
	value, err := encodeRow(nil, info.ColumnTypes, row)
	if err != nil {
		return err
	}
	if err := e.bt.Insert(key, value); err != nil {
		return err
	}
	e.rowsWrittenCount.Inc()
	return nil
}

// scanTable invokes fn for every live row of the table in primary key order.
// Iteration stops early when fn returns false.
func (e *Engine) scanTable(info *TableInfo, fn func(key []byte, row []Value) (bool, error)) error {
	prefix := common.AppendUint32ToBufferBE(nil, info.ID)
	return e.bt.Scan(func(key, value []byte) (bool, error) {
		cmp := bytes.Compare(key[:4], prefix)
		if cmp < 0 {
			return true, nil
		}
		if cmp > 0 {
			// Keys are grouped by table id, nothing further belongs to us.
			return false, nil
		}
		row, err := decodeRow(value, info.ColumnTypes)
		if err != nil {
			return false, err
		}
		if row == nil {
			// Tombstone.
			return true, nil
		}
		return fn(key, row)
	})
}

func (e *Engine) executeSelect(stmt *sqlparser.SelectStmt) (*Result, error) {
	if stmt.From == "" {
		return e.executeBareSelect(stmt)
	}
	info, ok := e.cat.getTable(strings.ToLower(stmt.From))
	if !ok {
		return nil, errors.NewUnknownTableError(stmt.From)
	}

	where, err := foldOptional(stmt.Where)
	if err != nil {
		return nil, err
	}

	var exprs []sqlparser.Expr
	var colNames []string
	if stmt.Star {
		colNames = info.ColumnNames
	} else {
		for _, exprTree := range stmt.Exprs {
			expr, err := exprTree.Fold()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
			colNames = append(colNames, exprColumnName(expr))
		}
	}

	res := &Result{ColumnNames: colNames}
	err = e.scanTable(info, func(key []byte, row []Value) (bool, error) {
		ctx := &evalContext{table: info, row: row}
		match, err := rowMatches(where, ctx)
		if err != nil {
			return false, err
		}
		if !match {
			return true, nil
		}
		if stmt.Star {
			res.Rows = append(res.Rows, row)
			return true, nil
		}
		out := make([]Value, len(exprs))
		for i, expr := range exprs {
			v, err := evaluate(expr, ctx)
			if err != nil {
				return false, err
			}
			out[i] = v
		}
		res.Rows = append(res.Rows, out)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// executeBareSelect evaluates expressions with no table, e.g. SELECT 1 + 2.
func (e *Engine) executeBareSelect(stmt *sqlparser.SelectStmt) (*Result, error) {
	if stmt.Star {
		return nil, errors.NewInvalidStatementError("SELECT * requires a FROM clause")
	}
	if stmt.Where != nil {
		return nil, errors.NewInvalidStatementError("WHERE requires a FROM clause")
	}
	res := &Result{}
	out := make([]Value, len(stmt.Exprs))
	for i, exprTree := range stmt.Exprs {
		expr, err := exprTree.Fold()
		if err != nil {
			return nil, err
		}
		v, err := evaluate(expr, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
		res.ColumnNames = append(res.ColumnNames, exprColumnName(expr))
	}
	res.Rows = [][]Value{out}
	return res, nil
}

func (e *Engine) executeUpdate(stmt *sqlparser.UpdateStmt) (*Result, error) {
	info, ok := e.cat.getTable(strings.ToLower(stmt.Table))
	if !ok {
		return nil, errors.NewUnknownTableError(stmt.Table)
	}
	where, err := foldOptional(stmt.Where)
	if err != nil {
		return nil, err
	}
	type assignment struct {
		colIdx int
		expr   sqlparser.Expr
	}
	assignments := make([]assignment, 0, len(stmt.Assignments))
	for _, a := range stmt.Assignments {
		idx := info.columnIndex(strings.ToLower(a.Column))
		if idx == -1 {
			return nil, errors.NewUnknownColumnError(a.Column, info.Name)
		}
		expr, err := a.Value.Fold()
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment{colIdx: idx, expr: expr})
	}

	e.writeLock.Lock()
	defer e.writeLock.Unlock()

	// Collect matches first, then apply. Updating while scanning would let the
	// scan observe its own writes when a primary key change moves the row.
	type pendingUpdate struct {
		oldKey []byte
		newRow []Value
	}
	var pending []pendingUpdate
	err = e.scanTable(info, func(key []byte, row []Value) (bool, error) {
		ctx := &evalContext{table: info, row: row}
		match, err := rowMatches(where, ctx)
		if err != nil {
			return false, err
		}
		if !match {
			return true, nil
		}
		newRow := make([]Value, len(row))
		copy(newRow, row)
		for _, a := range assignments {
			v, err := evaluate(a.expr, ctx)
			if err != nil {
				return false, err
			}
			coerced, err := coerceToColumn(v, info.ColumnNames[a.colIdx], info.ColumnTypes[a.colIdx])
			if err != nil {
				return false, err
			}
			newRow[a.colIdx] = coerced
		}
		oldKey := make([]byte, len(key))
		copy(oldKey, key)
		pending = append(pending, pendingUpdate{oldKey: oldKey, newRow: newRow})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		newKey, err := encodeTableKey(info.ID, info, p.newRow)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(newKey, p.oldKey) {
			if err := e.bt.Insert(p.oldKey, tombstoneRow); err != nil {
				return nil, err
			}
		}
		if err := e.writeRow(info, p.newRow); err != nil {
			return nil, err
		}
	}
	return &Result{RowsAffected: len(pending)}, nil
}

func (e *Engine) executeDelete(stmt *sqlparser.DeleteStmt) (*Result, error) {
	info, ok := e.cat.getTable(strings.ToLower(stmt.Table))
	if !ok {
		return nil, errors.NewUnknownTableError(stmt.Table)
	}
	where, err := foldOptional(stmt.Where)
	if err != nil {
		return nil, err
	}

	e.writeLock.Lock()
	defer e.writeLock.Unlock()
	var keys [][]byte
	err = e.scanTable(info, func(key []byte, row []Value) (bool, error) {
		match, err := rowMatches(where, &evalContext{table: info, row: row})
		if err != nil {
			return false, err
		}
		if match {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := e.bt.Insert(key, tombstoneRow); err != nil {
			return nil, err
		}
		e.rowsWrittenCount.Inc()
	}
	return &Result{RowsAffected: len(keys)}, nil
}

func foldOptional(exprTree *sqlparser.Expression) (sqlparser.Expr, error) {
	if exprTree == nil {
		return nil, nil
	}
	return exprTree.Fold()
}

func rowMatches(where sqlparser.Expr, ctx *evalContext) (bool, error) {
	if where == nil {
		return true, nil
	}
	v, err := evaluate(where, ctx)
	if err != nil {
		return false, err
	}
	return v.IsTrue(), nil
}

// exprColumnName derives the result column header. Plain column references
// keep their name, anything else is labelled by position independent rendering
// of the expression kind.
func exprColumnName(expr sqlparser.Expr) string {
	switch e := expr.(type) {
	case *sqlparser.ColumnRef:
		return e.Path[len(e.Path)-1]
	case *sqlparser.FuncCall:
		return e.Name
	default:
		return "expr"
	}
}

package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sprouterdb/sprouter/conf"
	"github.com/sprouterdb/sprouter/errors"
)

func startEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := conf.NewDefaultConfig()
	cfg.InMemory = true
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() {
		require.NoError(t, e.Stop())
	})
	return e
}

func createSensorsTable(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.Execute("create table sensors (id bigint, temp double, label varchar, primary key (id))")
	require.NoError(t, err)
}

func TestCreateTable(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	info, ok := e.cat.getTable("sensors")
	require.True(t, ok)
	require.Equal(t, []string{"id", "temp", "label"}, info.ColumnNames)
	require.Equal(t, []int{0}, info.PrimaryKeyCols)

	_, err := e.Execute("create table sensors (id bigint, primary key (id))")
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.TableAlreadyExists), serr.Code)
}

func TestCreateTableRequiresPrimaryKey(t *testing.T) {
	e := startEngine(t)
	_, err := e.Execute("create table nokeys (id bigint)")
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.MissingPrimaryKey), serr.Code)
}

func TestInsertAndSelect(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	res, err := e.Execute("insert into sensors values (2, 21.5, 'kitchen'), (1, 19.0, 'hall')")
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsAffected)

	// Rows come back in primary key order regardless of insert order.
	res, err = e.Execute("select * from sensors")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "temp", "label"}, res.ColumnNames)
	require.Equal(t, [][]Value{
		{IntValue(1), FloatValue(19.0), StringValue("hall")},
		{IntValue(2), FloatValue(21.5), StringValue("kitchen")},
	}, res.Rows)
}

func TestInsertWithColumnList(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors (label, id) values ('attic', 5)")
	require.NoError(t, err)

	res, err := e.Execute("select * from sensors")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{IntValue(5), Null, StringValue("attic")}}, res.Rows)
}

func TestInsertWrongNumberOfValues(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors values (1, 2.0)")
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.WrongNumberValues), serr.Code)
}

func TestInsertNullPrimaryKeyFails(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors (temp) values (1.0)")
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.MissingPrimaryKey), serr.Code)
}

func TestSelectWithWhereAndProjection(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors values (1, 19.0, 'hall'), (2, 21.5, 'kitchen'), (3, 24.0, 'attic')")
	require.NoError(t, err)

	res, err := e.Execute("select label, temp * 2 from sensors where temp > 20")
	require.NoError(t, err)
	require.Equal(t, []string{"label", "expr"}, res.ColumnNames)
	require.Equal(t, [][]Value{
		{StringValue("kitchen"), FloatValue(43.0)},
		{StringValue("attic"), FloatValue(48.0)},
	}, res.Rows)
}

func TestBareSelect(t *testing.T) {
	e := startEngine(t)

	res, err := e.Execute("select 1 + 2 * 3, upper('abc')")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{IntValue(7), StringValue("ABC")}}, res.Rows)

	_, err = e.Execute("select * ")
	require.Error(t, err)
}

func TestUpdate(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors values (1, 19.0, 'hall'), (2, 21.5, 'kitchen')")
	require.NoError(t, err)

	res, err := e.Execute("update sensors set temp = temp + 1 where id = 1")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsAffected)

	res, err = e.Execute("select temp from sensors where id = 1")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{FloatValue(20.0)}}, res.Rows)
}

func TestUpdatePrimaryKeyMovesRow(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors values (1, 19.0, 'hall')")
	require.NoError(t, err)

	res, err := e.Execute("update sensors set id = 10")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsAffected)

	res, err = e.Execute("select * from sensors")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{IntValue(10), FloatValue(19.0), StringValue("hall")}}, res.Rows)
}

func TestDelete(t *testing.T) {
	e := startEngine(t)
	createSensorsTable(t, e)

	_, err := e.Execute("insert into sensors values (1, 19.0, 'hall'), (2, 21.5, 'kitchen'), (3, 24.0, 'attic')")
	require.NoError(t, err)

	res, err := e.Execute("delete from sensors where temp < 22")
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsAffected)

	res, err = e.Execute("select id from sensors")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{IntValue(3)}}, res.Rows)

	// Re-inserting a deleted key resurrects the row.
	_, err = e.Execute("insert into sensors values (1, 18.0, 'hall')")
	require.NoError(t, err)
	res, err = e.Execute("select id from sensors")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{IntValue(1)}, {IntValue(3)}}, res.Rows)
}

func TestUnknownTable(t *testing.T) {
	e := startEngine(t)
	for _, sql := range []string{
		"select * from nosuch",
		"insert into nosuch values (1)",
		"update nosuch set a = 1",
		"delete from nosuch",
	} {
		_, err := e.Execute(sql)
		require.Error(t, err, sql)
		serr, ok := err.(errors.SprouterError)
		require.True(t, ok)
		require.Equal(t, errors.ErrorCode(errors.UnknownTable), serr.Code, sql)
	}
}

func TestTypeCoercionAndRangeChecks(t *testing.T) {
	e := startEngine(t)
	_, err := e.Execute("create table small (id tinyint, n int, primary key (id))")
	require.NoError(t, err)

	_, err = e.Execute("insert into small values (127, 1)")
	require.NoError(t, err)

	_, err = e.Execute("insert into small values (128, 1)")
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.ValueOutOfRange), serr.Code)

	_, err = e.Execute("insert into small values (1, 'text')")
	require.Error(t, err)
}

func TestCompositePrimaryKey(t *testing.T) {
	e := startEngine(t)
	_, err := e.Execute("create table events (day bigint, seq bigint, what varchar, primary key (day, seq))")
	require.NoError(t, err)

	_, err = e.Execute("insert into events values (2, 1, 'b'), (1, 2, 'a2'), (1, 1, 'a1')")
	require.NoError(t, err)

	res, err := e.Execute("select what from events")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{StringValue("a1")}, {StringValue("a2")}, {StringValue("b")}}, res.Rows)
}

func TestManyRowsAcrossPageSplits(t *testing.T) {
	e := startEngine(t)
	_, err := e.Execute("create table bulk (id bigint, payload varchar, primary key (id))")
	require.NoError(t, err)

	n := 2000
	for i := 0; i < n; i++ {
		_, err := e.Execute(fmt.Sprintf("insert into bulk values (%d, 'payload-%d')", i, i))
		require.NoError(t, err)
	}

	res, err := e.Execute("select * from bulk")
	require.NoError(t, err)
	require.Len(t, res.Rows, n)
	for i, row := range res.Rows {
		require.Equal(t, IntValue(int64(i)), row[0])
		require.Equal(t, StringValue(fmt.Sprintf("payload-%d", i)), row[1])
	}

	res, err = e.Execute("select id from bulk where id % 100 = 0 and id > 0")
	require.NoError(t, err)
	require.Len(t, res.Rows, 19)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dataDir := t.TempDir()
	cfg := conf.NewDefaultConfig()
	cfg.InMemory = false
	cfg.DataDir = dataDir

	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	_, err = e.Execute("create table sensors (id bigint, temp double, primary key (id))")
	require.NoError(t, err)
	_, err = e.Execute("insert into sensors values (1, 19.0), (2, 21.5)")
	require.NoError(t, err)
	_, err = e.Execute("delete from sensors where id = 2")
	require.NoError(t, err)
	require.NoError(t, e.Stop())

	e2, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e2.Start())
	defer func() {
		require.NoError(t, e2.Stop())
	}()

	res, err := e2.Execute("select * from sensors")
	require.NoError(t, err)
	require.Equal(t, [][]Value{{IntValue(1), FloatValue(19.0)}}, res.Rows)

	// Deletes survive too, and new tables can still be created.
	_, err = e2.Execute("create table other (id bigint, primary key (id))")
	require.NoError(t, err)
}

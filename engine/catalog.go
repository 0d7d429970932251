package engine

import (
	"encoding/json"
	"sync"

	gbtree "github.com/google/btree"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/storage/btree"
)

// catalogTableID is reserved for table metadata. User tables get ids from
// userTableIDBase so their rows always sort after the catalog rows.
const (
	catalogTableID  = uint32(0)
	userTableIDBase = uint32(1)
)

// TableInfo describes a table: column names and types in declaration order and
// the indexes of the primary key columns.
type TableInfo struct {
	ID             uint32              `json:"id"`
	Name           string              `json:"name"`
	ColumnNames    []string            `json:"column_names"`
	ColumnTypes    []common.ColumnType `json:"column_types"`
	PrimaryKeyCols []int               `json:"primary_key_cols"`
}

func (t *TableInfo) columnIndex(name string) int {
	for i, cn := range t.ColumnNames {
		if cn == name {
			return i
		}
	}
	return -1
}

type tableItem struct {
	info *TableInfo
}

func (t *tableItem) Less(than gbtree.Item) bool {
	return t.info.Name < than.(*tableItem).info.Name
}

// catalog is the table metadata store. Lookups are served from an in-memory
// ordered index, every change is also written through to the storage tree so
// it survives restarts.
type catalog struct {
	lock        sync.RWMutex
	bt          *btree.BTree
	tables      *gbtree.BTree
	nextTableID uint32
}

func newCatalog(bt *btree.BTree) (*catalog, error) {
	c := &catalog{
		bt:          bt,
		tables:      gbtree.New(3),
		nextTableID: userTableIDBase,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *catalog) load() error {
	return c.bt.Scan(func(key, value []byte) (bool, error) {
		tableID, _ := common.ReadUint32FromBufferBE(key, 0)
		if tableID != catalogTableID {
			// Catalog rows sort first, nothing further to load.
			return false, nil
		}
		if len(value) == 0 || value[0] == rowStatusTombstone {
			return true, nil
		}
		info := &TableInfo{}
		if err := json.Unmarshal(value[1:], info); err != nil {
			return false, errors.MaybeAddStack(err)
		}
		c.tables.ReplaceOrInsert(&tableItem{info: info})
		if info.ID >= c.nextTableID {
			c.nextTableID = info.ID + 1
		}
		return true, nil
	})
}

func (c *catalog) getTable(name string) (*TableInfo, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	item := c.tables.Get(&tableItem{info: &TableInfo{Name: name}})
	if item == nil {
		return nil, false
	}
	return item.(*tableItem).info, true
}

// createTable assigns the table id, persists the metadata and publishes the
// table. The engine serializes DDL so there is no id allocation race.
func (c *catalog) createTable(info *TableInfo) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.tables.Has(&tableItem{info: info}) {
		return errors.NewTableAlreadyExistsError(info.Name)
	}
	info.ID = c.nextTableID
	b, err := json.Marshal(info)
	if err != nil {
		return errors.MaybeAddStack(err)
	}
	key := common.AppendUint32ToBufferBE(nil, catalogTableID)
	key = common.KeyEncodeString(key, info.Name)
	value := append([]byte{rowStatusLive}, b...)
	if err := c.bt.Insert(key, value); err != nil {
		return err
	}
	c.nextTableID++
	c.tables.ReplaceOrInsert(&tableItem{info: info})
	return nil
}

func (c *catalog) tableCount() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.tables.Len()
}

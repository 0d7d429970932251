package btree

import (
	"bytes"

	"github.com/sprouterdb/sprouter/errors"
)

// Search walks from the metadata node to the leaf that owns key. A key at or
// past a node's separator means the node split after we read its parent, so
// we move right through the sibling chain instead of failing.
func (bt *BTree) Search(key []byte) ([]byte, bool, error) {
	pageNo := uint32(metadataPageNo)
	for {
		guard, err := bt.pageFetcher.FetchRead(pageNo)
		if err != nil {
			return nil, false, err
		}
		switch nodeTypeOf(guard.Page) {
		case nodeMetadata:
			rootNo, ok := rootNoOf(guard.Page)
			guard.Release()
			if !ok {
				return nil, false, nil
			}
			pageNo = rootNo

		case nodeInternal:
			if bytes.Compare(key, separatorOf(guard.Page)) >= 0 {
				next := rightSiblingOf(guard.Page)
				guard.Release()
				if next == 0 {
					return nil, false, errors.NewInternalError("key past separator of rightmost internal node")
				}
				pageNo = next
				continue
			}
			childNo, err := findChild(guard.Page, key)
			guard.Release()
			if err != nil {
				return nil, false, err
			}
			pageNo = childNo

		case nodeLeaf:
			if bytes.Compare(key, separatorOf(guard.Page)) >= 0 {
				next := rightSiblingOf(guard.Page)
				guard.Release()
				if next == 0 {
					return nil, false, nil
				}
				pageNo = next
				continue
			}
			for _, e := range entriesOf(guard.Page) {
				if bytes.Equal(e.key, key) {
					guard.Release()
					return e.payload, true, nil
				}
			}
			guard.Release()
			return nil, false, nil

		default:
			guard.Release()
			return nil, false, errors.NewSprouterErrorf(errors.CorruptPage, "page %d has unknown node type", pageNo)
		}
	}
}

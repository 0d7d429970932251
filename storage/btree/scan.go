package btree

import (
	"github.com/sprouterdb/sprouter/errors"
)

// Scan visits every entry in key order: leftmost descent, then the leaf
// sibling chain. Entries within a leaf are held in insertion order, so each
// leaf is sorted before being emitted. The callback returns false to stop
// the scan early.
func (bt *BTree) Scan(fn func(key []byte, value []byte) (bool, error)) error {
	pageNo := uint32(metadataPageNo)

	// Descend to the leftmost leaf.
descend:
	for {
		guard, err := bt.pageFetcher.FetchRead(pageNo)
		if err != nil {
			return err
		}
		switch nodeTypeOf(guard.Page) {
		case nodeMetadata:
			rootNo, ok := rootNoOf(guard.Page)
			guard.Release()
			if !ok {
				// Empty tree.
				return nil
			}
			pageNo = rootNo

		case nodeInternal:
			childNo, err := leftmostChild(guard.Page)
			guard.Release()
			if err != nil {
				return err
			}
			pageNo = childNo

		case nodeLeaf:
			guard.Release()
			break descend

		default:
			guard.Release()
			return errors.NewSprouterErrorf(errors.CorruptPage, "page %d has unknown node type", pageNo)
		}
	}

	// Walk the leaf chain.
	for {
		guard, err := bt.pageFetcher.FetchRead(pageNo)
		if err != nil {
			return err
		}
		entries := entriesOf(guard.Page)
		next := rightSiblingOf(guard.Page)
		guard.Release()

		sortEntries(entries)
		for _, e := range entries {
			cont, err := fn(e.key, e.payload)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		if next == 0 {
			return nil
		}
		pageNo = next
	}
}

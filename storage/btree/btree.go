package btree

import (
	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/storage/fetcher"
	"github.com/sprouterdb/sprouter/storage/page"
)

const metadataPageNo = 0

// Counter is incremented when interesting events happen; a prometheus counter
// satisfies it.
type Counter interface {
	Inc()
}

type BTree struct {
	pageFetcher  fetcher.PageFetcher
	splitCounter Counter
}

// NewBTree opens a tree over the given fetcher, allocating the metadata page
// if the store is empty.
func NewBTree(pageFetcher fetcher.PageFetcher) (*BTree, error) {
	bt := &BTree{pageFetcher: pageFetcher}
	if pageFetcher.PageCount() == 0 {
		_, guard, err := pageFetcher.NewPage(specialFor(nodeMetadata, 0))
		if err != nil {
			return nil, err
		}
		if err := guard.Release(); err != nil {
			return nil, err
		}
		return bt, nil
	}
	guard, err := pageFetcher.FetchRead(metadataPageNo)
	if err != nil {
		return nil, err
	}
	defer guard.Release()
	if nodeTypeOf(guard.Page) != nodeMetadata {
		return nil, errors.NewSprouterErrorf(errors.CorruptPage, "page %d is not a metadata node", metadataPageNo)
	}
	return bt, nil
}

// SetSplitCounter installs a counter incremented on every page split.
func (bt *BTree) SetSplitCounter(c Counter) {
	bt.splitCounter = c
}

func rootNoOf(p *page.Page) (uint32, bool) {
	if p.ItemCount() == 0 {
		return 0, false
	}
	rootNo, _ := common.ReadUint32FromBufferLE(p.GetItem(0), 0)
	return rootNo, true
}

func setRootNo(p *page.Page, rootNo uint32) error {
	encoded := common.AppendUint32ToBufferLE(nil, rootNo)
	if p.ItemCount() == 0 {
		return p.AddItem(encoded)
	}
	return p.UpdateItem(0, encoded)
}

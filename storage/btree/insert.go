package btree

import (
	"bytes"

	log "github.com/sirupsen/logrus"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/storage/fetcher"
	"github.com/sprouterdb/sprouter/storage/page"
)

// childLink names a child page by its number and current high key, as its
// parent should record it.
type childLink struct {
	key    []byte
	pageNo uint32
}

// Insert adds or replaces the value for key, splitting pages as needed.
// Concurrent readers are safe thanks to the sibling chain; concurrent writers
// must be serialized by the caller.
func (bt *BTree) Insert(key []byte, value []byte) error {
	log.Debugf("btree insert, key %x value of %d bytes", key, len(value))
	rootNo, err := bt.ensureRoot()
	if err != nil {
		return err
	}

	// Page 0 at the bottom of the stack marks that a split has propagated
	// all the way to the root.
	traversed := []uint32{metadataPageNo}
	pageNo := rootNo
descend:
	for {
		guard, err := bt.pageFetcher.FetchRead(pageNo)
		if err != nil {
			return err
		}
		switch nodeTypeOf(guard.Page) {
		case nodeInternal:
			if bytes.Compare(key, separatorOf(guard.Page)) >= 0 {
				next := rightSiblingOf(guard.Page)
				guard.Release()
				if next == 0 {
					return errors.NewInternalError("key past separator of rightmost internal node")
				}
				pageNo = next
				continue
			}
			childNo, err := findChild(guard.Page, key)
			guard.Release()
			if err != nil {
				return err
			}
			traversed = append(traversed, pageNo)
			pageNo = childNo

		case nodeLeaf:
			guard.Release()
			break descend

		default:
			guard.Release()
			return errors.NewSprouterErrorf(errors.CorruptPage, "unexpected node type during descent at page %d", pageNo)
		}
	}

	leafGuard, leafNo, err := bt.fetchLeafWrite(pageNo, key)
	if err != nil {
		return err
	}
	done, err := upsertInLeaf(leafGuard.Page, key, value)
	if err != nil {
		releaseErr := leafGuard.Release()
		_ = releaseErr
		return err
	}
	if done {
		return leafGuard.Release()
	}

	// Not enough space in the leaf, split it with the pending entry included
	// in the redistribution.
	log.Debugf("not enough space in leaf %d, splitting", leafNo)
	entries := entriesOf(leafGuard.Page)
	entries = removeEntry(entries, key)
	entries = append(entries, entry{key: key, payload: value})
	origLink, newLink, err := bt.split(leafGuard, leafNo, entries)
	if err != nil {
		releaseErr := leafGuard.Release()
		_ = releaseErr
		return err
	}
	if err := leafGuard.Release(); err != nil {
		return err
	}

	return bt.propagateSplit(traversed, origLink, newLink)
}

// propagateSplit unwinds the traversal stack updating parent links after a
// child split, splitting parents in turn when they overflow.
func (bt *BTree) propagateSplit(traversed []uint32, origLink childLink, newLink childLink) error {
	for i := len(traversed) - 1; i >= 0; i-- {
		parentNo := traversed[i]
		if parentNo == metadataPageNo {
			return bt.growRoot(origLink, newLink)
		}

		parentGuard, foundNo, err := bt.fetchParentWrite(parentNo, origLink.pageNo)
		if err != nil {
			return err
		}
		sep := separatorOf(parentGuard.Page)
		entries := entriesOf(parentGuard.Page)
		for j := range entries {
			childNo, _ := decodeChildNo(entries[j].payload)
			if childNo == origLink.pageNo {
				entries[j].key = origLink.key
				break
			}
		}
		entries = append(entries, entry{key: newLink.key, payload: encodeChildNo(newLink.pageNo)})

		if fits(sep, entries) {
			if err := rebuildNode(parentGuard.Page, sep, entries); err != nil {
				releaseErr := parentGuard.Release()
				_ = releaseErr
				return err
			}
			return parentGuard.Release()
		}

		log.Debugf("not enough space in internal node %d, splitting", foundNo)
		origLink, newLink, err = bt.split(parentGuard, foundNo, entries)
		if err != nil {
			releaseErr := parentGuard.Release()
			_ = releaseErr
			return err
		}
		if err := parentGuard.Release(); err != nil {
			return err
		}
	}
	return errors.NewInternalError("split propagation ran past the metadata node")
}

// growRoot replaces the root with a fresh internal node pointing at the two
// halves of the old root.
func (bt *BTree) growRoot(origLink childLink, newLink childLink) error {
	metaGuard, err := bt.pageFetcher.FetchWrite(metadataPageNo)
	if err != nil {
		return err
	}
	newRootNo, rootGuard, err := bt.pageFetcher.NewPage(specialFor(nodeInternal, 0))
	if err != nil {
		releaseErr := metaGuard.Release()
		_ = releaseErr
		return err
	}
	log.Debugf("growing tree, new root %d", newRootNo)
	if err := setSeparator(rootGuard.Page, maxKey); err != nil {
		return releaseAll(err, rootGuard, metaGuard)
	}
	if err := rootGuard.Page.AddItem(encodeChildEntry(origLink.key, origLink.pageNo)); err != nil {
		return releaseAll(err, rootGuard, metaGuard)
	}
	if err := rootGuard.Page.AddItem(encodeChildEntry(newLink.key, newLink.pageNo)); err != nil {
		return releaseAll(err, rootGuard, metaGuard)
	}
	if err := setRootNo(metaGuard.Page, newRootNo); err != nil {
		return releaseAll(err, rootGuard, metaGuard)
	}
	return releaseAll(nil, rootGuard, metaGuard)
}

// split redistributes entries between guard's page and a fresh right
// sibling, low half staying put. Returns the parent links for the two
// halves.
func (bt *BTree) split(guard *fetcher.WriteGuard, pageNo uint32, entries []entry) (childLink, childLink, error) {
	oldSep := separatorOf(guard.Page)
	rightSibling := rightSiblingOf(guard.Page)
	typ := nodeTypeOf(guard.Page)
	sortEntries(entries)

	total := 0
	for _, e := range entries {
		total += entrySize(e)
	}
	splitIdx := 0
	acc := 0
	for i, e := range entries {
		acc += entrySize(e)
		if acc > total/2 {
			splitIdx = i + 1
			break
		}
	}
	// Both halves must be non-empty.
	if splitIdx < 1 {
		splitIdx = 1
	}
	if splitIdx >= len(entries) {
		splitIdx = len(entries) - 1
	}
	splitKey := entries[splitIdx].key

	newNo, newGuard, err := bt.pageFetcher.NewPage(specialFor(typ, rightSibling))
	if err != nil {
		return childLink{}, childLink{}, err
	}
	if err := rebuildNode(newGuard.Page, oldSep, entries[splitIdx:]); err != nil {
		releaseErr := newGuard.Release()
		_ = releaseErr
		return childLink{}, childLink{}, err
	}
	if err := rebuildNode(guard.Page, splitKey, entries[:splitIdx]); err != nil {
		releaseErr := newGuard.Release()
		_ = releaseErr
		return childLink{}, childLink{}, err
	}
	setRightSibling(guard.Page, newNo)
	if err := newGuard.Release(); err != nil {
		return childLink{}, childLink{}, err
	}

	log.Debugf("split page %d, new sibling %d, split key %x", pageNo, newNo, splitKey)
	if bt.splitCounter != nil {
		bt.splitCounter.Inc()
	}
	return childLink{key: splitKey, pageNo: pageNo}, childLink{key: oldSep, pageNo: newNo}, nil
}

// ensureRoot returns the root page number, lazily creating an empty leaf
// root on first insert.
func (bt *BTree) ensureRoot() (uint32, error) {
	guard, err := bt.pageFetcher.FetchRead(metadataPageNo)
	if err != nil {
		return 0, err
	}
	rootNo, ok := rootNoOf(guard.Page)
	guard.Release()
	if ok {
		return rootNo, nil
	}

	// Drop the read lock before taking the write lock, then re-check.
	metaGuard, err := bt.pageFetcher.FetchWrite(metadataPageNo)
	if err != nil {
		return 0, err
	}
	if rootNo, ok := rootNoOf(metaGuard.Page); ok {
		releaseErr := metaGuard.Release()
		return rootNo, releaseErr
	}
	log.Debug("root not found, initializing a new root leaf")
	leafNo, leafGuard, err := bt.pageFetcher.NewPage(specialFor(nodeLeaf, 0))
	if err != nil {
		releaseErr := metaGuard.Release()
		_ = releaseErr
		return 0, err
	}
	if err := setSeparator(leafGuard.Page, maxKey); err != nil {
		return 0, releaseAll(err, leafGuard, metaGuard)
	}
	if err := setRootNo(metaGuard.Page, leafNo); err != nil {
		return 0, releaseAll(err, leafGuard, metaGuard)
	}
	if err := releaseAll(nil, leafGuard, metaGuard); err != nil {
		return 0, err
	}
	return leafNo, nil
}

// fetchLeafWrite write locks the leaf owning key, moving right past any
// splits that happened since the descent.
func (bt *BTree) fetchLeafWrite(pageNo uint32, key []byte) (*fetcher.WriteGuard, uint32, error) {
	for {
		guard, err := bt.pageFetcher.FetchWrite(pageNo)
		if err != nil {
			return nil, 0, err
		}
		if bytes.Compare(key, separatorOf(guard.Page)) < 0 {
			return guard, pageNo, nil
		}
		next := rightSiblingOf(guard.Page)
		releaseErr := guard.Release()
		if releaseErr != nil {
			return nil, 0, releaseErr
		}
		if next == 0 {
			return nil, 0, errors.NewInternalError("key past separator of rightmost leaf")
		}
		pageNo = next
	}
}

// fetchParentWrite write locks the internal node that actually holds the
// entry for childNo, moving right from the remembered parent.
func (bt *BTree) fetchParentWrite(parentNo uint32, childNo uint32) (*fetcher.WriteGuard, uint32, error) {
	for {
		guard, err := bt.pageFetcher.FetchWrite(parentNo)
		if err != nil {
			return nil, 0, err
		}
		if containsChild(guard.Page, childNo) {
			return guard, parentNo, nil
		}
		next := rightSiblingOf(guard.Page)
		releaseErr := guard.Release()
		if releaseErr != nil {
			return nil, 0, releaseErr
		}
		if next == 0 {
			return nil, 0, errors.NewInternalError("no internal node holds the split child entry")
		}
		parentNo = next
	}
}

func containsChild(p *page.Page, childNo uint32) bool {
	for _, e := range entriesOf(p) {
		no, ok := decodeChildNo(e.payload)
		if ok && no == childNo {
			return true
		}
	}
	return false
}

// upsertInLeaf updates an existing entry or adds a new one. It reports false
// with no error when the page is full and the caller must split.
func upsertInLeaf(p *page.Page, key []byte, value []byte) (bool, error) {
	items := p.Items()
	for i, item := range items[1:] {
		k, payload := decodeEntry(item)
		if !bytes.Equal(k, key) {
			continue
		}
		if len(payload) == len(value) {
			return true, p.UpdateItem(i+1, encodeEntry(key, value))
		}
		// Size changed: rebuild the page without the old entry, then retry
		// the add below.
		sep := separatorOf(p)
		entries := removeEntry(entriesOf(p), key)
		if err := rebuildNode(p, sep, entries); err != nil {
			return false, err
		}
		break
	}
	err := p.AddItem(encodeEntry(key, value))
	if err == page.ErrPageFull {
		return false, nil
	}
	return true, err
}

func removeEntry(entries []entry, key []byte) []entry {
	kept := entries[:0]
	for _, e := range entries {
		if !bytes.Equal(e.key, key) {
			kept = append(kept, e)
		}
	}
	return kept
}

// fits reports whether a node rebuilt with the given separator and entries
// would fit in one page. Item offsets are aligned down, so one item consumes
// exactly ItemPointerSize + AlignOffset(size, ItemAlign) bytes.
func fits(sep []byte, entries []entry) bool {
	needed := page.ItemPointerSize + page.AlignOffset(len(encodeEntry(sep, nil)), page.ItemAlign)
	for _, e := range entries {
		needed += page.ItemPointerSize + page.AlignOffset(entrySize(e), page.ItemAlign)
	}
	return needed <= page.DataSize-specialSize
}

func entrySize(e entry) int {
	return 2 + len(e.key) + len(e.payload)
}

func encodeChildNo(childNo uint32) []byte {
	return common.AppendUint32ToBufferLE(nil, childNo)
}

func decodeChildNo(payload []byte) (uint32, bool) {
	if len(payload) != 4 {
		return 0, false
	}
	childNo, _ := common.ReadUint32FromBufferLE(payload, 0)
	return childNo, true
}

// releaseAll releases guards in order, returning err if non nil, otherwise
// the first release error.
func releaseAll(err error, guards ...interface{ Release() error }) error {
	for _, g := range guards {
		releaseErr := g.Release()
		if err == nil {
			err = releaseErr
		}
	}
	return err
}

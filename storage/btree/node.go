// Package btree implements a B-link-tree over slotted pages. Page 0 is the
// metadata node holding the root page number. Leaf and internal nodes keep
// their high key separator as item 0 and a right sibling pointer in the page
// special data, so readers can recover from an in-progress split by moving
// right.
package btree

import (
	"bytes"
	"sort"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/storage/page"
)

type nodeType byte

const (
	nodeMetadata nodeType = iota
	nodeInternal
	nodeLeaf
)

const specialSize = 8

// maxKey sorts after any encoded key: encoded int64 and float64 keys are 8
// bytes and string keys start with a 4 byte length prefix.
var maxKey = bytes.Repeat([]byte{0xff}, 9)

func specialFor(t nodeType, rightSibling uint32) []byte {
	special := make([]byte, specialSize)
	special[0] = byte(t)
	common.AppendUint32ToBufferLE(special[4:4], rightSibling)
	return special
}

func nodeTypeOf(p *page.Page) nodeType {
	return nodeType(p.SpecialData()[0])
}

func rightSiblingOf(p *page.Page) uint32 {
	v, _ := common.ReadUint32FromBufferLE(p.SpecialData(), 4)
	return v
}

func setRightSibling(p *page.Page, rightSibling uint32) {
	special := p.SpecialData()
	common.AppendUint32ToBufferLE(special[4:4], rightSibling)
}

// Items in leaf and internal nodes share one encoding: a length prefixed key
// followed by the payload. Leaf payloads are values, internal payloads are a
// child page number, separator items (always item 0) have no payload.
func encodeEntry(key []byte, payload []byte) []byte {
	b := common.AppendUint16ToBufferLE(nil, uint16(len(key)))
	b = append(b, key...)
	return append(b, payload...)
}

func decodeEntry(item []byte) (key []byte, payload []byte) {
	keyLen, offset := common.ReadUint16FromBufferLE(item, 0)
	return item[offset : offset+int(keyLen)], item[offset+int(keyLen):]
}

func encodeChildEntry(key []byte, childNo uint32) []byte {
	return encodeEntry(key, common.AppendUint32ToBufferLE(nil, childNo))
}

// separatorOf returns a copy of the node's high key. Every key stored in the
// node is strictly less than it; keys >= the separator live in a right
// sibling.
func separatorOf(p *page.Page) []byte {
	key, _ := decodeEntry(p.GetItem(0))
	return append([]byte(nil), key...)
}

func setSeparator(p *page.Page, key []byte) error {
	if p.ItemCount() != 0 {
		return errors.NewInternalError("separator must be the first item added to a node")
	}
	return p.AddItem(encodeEntry(key, nil))
}

type entry struct {
	key     []byte
	payload []byte
}

// entriesOf decodes all entries of a node, skipping the separator. The
// entries are copied out of the page buffer so callers may rebuild the page
// while holding them.
func entriesOf(p *page.Page) []entry {
	items := p.Items()
	entries := make([]entry, 0, len(items)-1)
	for _, item := range items[1:] {
		key, payload := decodeEntry(item)
		entries = append(entries, entry{
			key:     append([]byte(nil), key...),
			payload: append([]byte(nil), payload...),
		})
	}
	return entries
}

func sortEntries(entries []entry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
}

// rebuildNode rewrites a node's items from scratch, keeping its separator and
// special data.
func rebuildNode(p *page.Page, separator []byte, entries []entry) error {
	p.ZeroItemData()
	if err := setSeparator(p, separator); err != nil {
		return err
	}
	for _, e := range entries {
		if err := p.AddItem(encodeEntry(e.key, e.payload)); err != nil {
			return err
		}
	}
	return nil
}

// findChild routes a key within an internal node: the target is the child
// with the smallest high key greater than the search key. The caller has
// already established key < separator, and the rightmost child's high key
// equals the node separator, so a child always exists.
func findChild(p *page.Page, key []byte) (uint32, error) {
	var (
		found    bool
		bestKey  []byte
		bestNo   uint32
		haveBest bool
	)
	for _, e := range entriesOf(p) {
		if bytes.Compare(key, e.key) >= 0 {
			continue
		}
		if !haveBest || bytes.Compare(e.key, bestKey) < 0 {
			childNo, _ := common.ReadUint32FromBufferLE(e.payload, 0)
			bestKey = e.key
			bestNo = childNo
			haveBest = true
		}
		found = true
	}
	if !found {
		return 0, errors.NewInternalError("no child covers key in internal node")
	}
	return bestNo, nil
}

// leftmostChild is the child with the smallest high key, used to start full
// scans.
func leftmostChild(p *page.Page) (uint32, error) {
	entries := entriesOf(p)
	if len(entries) == 0 {
		return 0, errors.NewInternalError("internal node has no children")
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if bytes.Compare(e.key, best.key) < 0 {
			best = e
		}
	}
	childNo, _ := common.ReadUint32FromBufferLE(best.payload, 0)
	return childNo, nil
}

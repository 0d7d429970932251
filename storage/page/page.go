// Package page implements the fixed size slotted page that all storage is
// built from. A page holds a small header, an array of item pointers growing
// up from the front of the data area, item data growing down towards it, and
// a fixed size special region at the tail for node level metadata.
package page

import (
	"github.com/twmb/murmur3"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
)

const (
	PageSize        = 8192
	HeaderSize      = 16
	DataSize        = PageSize - HeaderSize
	ItemPointerSize = 4

	// ItemAlign is the alignment of item data offsets. One item consumes
	// ItemPointerSize + AlignOffset(len(item), ItemAlign) bytes of the page.
	ItemAlign = 8
)

// Header layout:
//   0:4   checksum over the rest of the page
//   4:6   itemUpper - end of the item pointer array, relative to the data area
//   6:8   itemLower - start of item data, relative to the data area
//   8:10  specialSize
//   10:16 reserved
const (
	checksumOffset    = 0
	itemUpperOffset   = 4
	itemLowerOffset   = 6
	specialSizeOffset = 8
)

var (
	ErrPageFull   = errors.NewSprouterError(errors.PageFull, "not enough space in page for item")
	ErrItemTooBig = errors.NewSprouterError(errors.ItemTooBig, "item does not fit in an empty page")
)

type Page struct {
	buf [PageSize]byte
}

// NewPage creates an empty page reserving specialSize bytes at the tail of
// the data area. specialSize must be a multiple of 8.
func NewPage(specialSize int) *Page {
	p := &Page{}
	p.setSpecialSize(uint16(specialSize))
	p.setItemUpper(0)
	p.setItemLower(uint16(DataSize - specialSize))
	return p
}

// FromBytes reconstructs a page from a serialized frame, verifying the
// checksum.
func FromBytes(b []byte) (*Page, error) {
	if len(b) != PageSize {
		return nil, errors.NewSprouterErrorf(errors.CorruptPage, "expected %d byte page frame, got %d", PageSize, len(b))
	}
	p := &Page{}
	copy(p.buf[:], b)
	stored, _ := common.ReadUint32FromBufferLE(p.buf[:], checksumOffset)
	if actual := murmur3.Sum32(p.buf[itemUpperOffset:]); stored != actual {
		return nil, errors.NewSprouterErrorf(errors.ChecksumMismatch, "page checksum mismatch: stored %x computed %x", stored, actual)
	}
	return p, nil
}

// Bytes updates the checksum and returns the serialized page frame. The
// returned slice aliases the page's buffer.
func (p *Page) Bytes() []byte {
	sum := murmur3.Sum32(p.buf[itemUpperOffset:])
	common.AppendUint32ToBufferLE(p.buf[:checksumOffset], sum)
	return p.buf[:]
}

func (p *Page) itemUpper() int {
	v, _ := common.ReadUint16FromBufferLE(p.buf[:], itemUpperOffset)
	return int(v)
}

func (p *Page) setItemUpper(v uint16) {
	common.AppendUint16ToBufferLE(p.buf[:itemUpperOffset], v)
}

func (p *Page) itemLower() int {
	v, _ := common.ReadUint16FromBufferLE(p.buf[:], itemLowerOffset)
	return int(v)
}

func (p *Page) setItemLower(v uint16) {
	common.AppendUint16ToBufferLE(p.buf[:itemLowerOffset], v)
}

func (p *Page) specialSize() int {
	v, _ := common.ReadUint16FromBufferLE(p.buf[:], specialSizeOffset)
	return int(v)
}

func (p *Page) setSpecialSize(v uint16) {
	common.AppendUint16ToBufferLE(p.buf[:specialSizeOffset], v)
}

func (p *Page) data() []byte {
	return p.buf[HeaderSize:]
}

// SpecialData returns the special region at the tail of the data area.
func (p *Page) SpecialData() []byte {
	d := p.data()
	return d[DataSize-p.specialSize():]
}

func (p *Page) ItemCount() int {
	return p.itemUpper() / ItemPointerSize
}

// ItemDataSize is the number of bytes currently used by item data.
func (p *Page) ItemDataSize() int {
	return (DataSize - p.specialSize()) - p.itemLower()
}

// FreeSpace is the number of bytes left between the pointer array and item
// data.
func (p *Page) FreeSpace() int {
	return p.itemLower() - p.itemUpper()
}

// AddItem appends an item to the page, failing with ErrPageFull when the
// pointer array and item data would cross.
func (p *Page) AddItem(item []byte) error {
	if len(item) > DataSize-p.specialSize()-ItemPointerSize {
		return ErrItemTooBig
	}
	ptrOffset := p.itemUpper()
	newUpper := ptrOffset + ItemPointerSize
	newLower := AlignOffsetDown(p.itemLower()-len(item), ItemAlign)
	if newUpper > newLower {
		return ErrPageFull
	}
	p.setItemUpper(uint16(newUpper))
	p.setItemLower(uint16(newLower))

	d := p.data()
	copy(d[newLower:], item)
	common.AppendUint16ToBufferLE(d[ptrOffset:ptrOffset], uint16(newLower))
	common.AppendUint16ToBufferLE(d[ptrOffset+2:ptrOffset+2], uint16(len(item)))
	return nil
}

// GetItem returns the item at idx. The returned slice aliases the page
// buffer.
func (p *Page) GetItem(idx int) []byte {
	d := p.data()
	ptrOffset := idx * ItemPointerSize
	if ptrOffset >= p.itemUpper() {
		return nil
	}
	offset, _ := common.ReadUint16FromBufferLE(d, ptrOffset)
	size, _ := common.ReadUint16FromBufferLE(d, ptrOffset+2)
	return d[offset : int(offset)+int(size)]
}

// UpdateItem overwrites the item at idx in place. The new item must be the
// same size as the existing one; callers needing to grow an item rebuild the
// page instead.
func (p *Page) UpdateItem(idx int, item []byte) error {
	d := p.data()
	ptrOffset := idx * ItemPointerSize
	if ptrOffset >= p.itemUpper() {
		return errors.NewSprouterErrorf(errors.CorruptPage, "item index %d out of range", idx)
	}
	offset, _ := common.ReadUint16FromBufferLE(d, ptrOffset)
	size, _ := common.ReadUint16FromBufferLE(d, ptrOffset+2)
	if int(size) != len(item) {
		return errors.NewSprouterErrorf(errors.CorruptPage, "cannot update item of size %d with %d bytes in place", size, len(item))
	}
	copy(d[offset:], item)
	return nil
}

// Items returns all items in insertion order. The slices alias the page
// buffer.
func (p *Page) Items() [][]byte {
	cnt := p.ItemCount()
	items := make([][]byte, cnt)
	for i := 0; i < cnt; i++ {
		items[i] = p.GetItem(i)
	}
	return items
}

// ZeroItemData clears all items and the item data area, leaving the special
// region untouched.
func (p *Page) ZeroItemData() {
	d := p.data()
	for i := 0; i < DataSize-p.specialSize(); i++ {
		d[i] = 0
	}
	p.setItemUpper(0)
	p.setItemLower(uint16(DataSize - p.specialSize()))
}

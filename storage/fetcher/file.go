package fetcher

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/storage/page"
)

// FilePageFetcher persists page frames at offset pageNo * PageSize in a
// single backing file. Frames are loaded lazily and pinned while a guard is
// outstanding; dirty frames are flushed when their write guard is released.
// When more than maxFrames frames are resident, unpinned frames are evicted.
// Evicted frames are always clean since the flush happens before the unpin.
type FilePageFetcher struct {
	mu        sync.Mutex
	file      *os.File
	frames    map[uint32]*frame
	maxFrames int
	pageCnt   uint32
}

// NewFilePageFetcher opens or creates the data file at path. maxFrames bounds
// the number of resident page frames, zero or negative means unbounded.
func NewFilePageFetcher(path string, maxFrames int) (*FilePageFetcher, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.MaybeAddStack(err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.MaybeAddStack(err)
	}
	if info.Size()%page.PageSize != 0 {
		return nil, errors.NewSprouterErrorf(errors.CorruptPage, "data file %s size %d is not a multiple of the page size", path, info.Size())
	}
	return &FilePageFetcher{
		file:      file,
		frames:    map[uint32]*frame{},
		maxFrames: maxFrames,
		pageCnt:   uint32(info.Size() / page.PageSize),
	}, nil
}

// frameFor returns the frame for pageNo pinned. The caller must arrange for
// unpin to be called exactly once, normally via guard release.
func (f *FilePageFetcher) frameFor(pageNo uint32) (*frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pageNo >= f.pageCnt {
		return nil, errors.NewSprouterErrorf(errors.UnknownPage, "page %d has not been allocated", pageNo)
	}
	fr, ok := f.frames[pageNo]
	if ok {
		fr.pins++
		return fr, nil
	}
	buf := make([]byte, page.PageSize)
	if _, err := f.file.ReadAt(buf, int64(pageNo)*page.PageSize); err != nil && err != io.EOF {
		return nil, errors.MaybeAddStack(err)
	}
	p, err := page.FromBytes(buf)
	if err != nil {
		return nil, err
	}
	fr = &frame{page: p, pins: 1}
	f.frames[pageNo] = fr
	f.evictLocked()
	return fr, nil
}

func (f *FilePageFetcher) evictLocked() {
	if f.maxFrames <= 0 {
		return
	}
	for pageNo, fr := range f.frames {
		if len(f.frames) <= f.maxFrames {
			return
		}
		if fr.pins == 0 {
			log.Debugf("evicting page frame %d", pageNo)
			delete(f.frames, pageNo)
		}
	}
}

func (f *FilePageFetcher) unpin(pageNo uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fr, ok := f.frames[pageNo]; ok {
		fr.pins--
	}
}

func (f *FilePageFetcher) flush(pageNo uint32, p *page.Page) error {
	log.Debugf("flushing page %d", pageNo)
	_, err := f.file.WriteAt(p.Bytes(), int64(pageNo)*page.PageSize)
	return errors.MaybeAddStack(err)
}

func (f *FilePageFetcher) FetchRead(pageNo uint32) (*ReadGuard, error) {
	fr, err := f.frameFor(pageNo)
	if err != nil {
		return nil, err
	}
	log.Debugf("acquiring read lock for page %d", pageNo)
	fr.lock.RLock()
	return &ReadGuard{Page: fr.page, PageNo: pageNo, mu: &fr.lock, unpin: func() { f.unpin(pageNo) }}, nil
}

func (f *FilePageFetcher) FetchWrite(pageNo uint32) (*WriteGuard, error) {
	fr, err := f.frameFor(pageNo)
	if err != nil {
		return nil, err
	}
	log.Debugf("acquiring write lock for page %d", pageNo)
	fr.lock.Lock()
	return &WriteGuard{Page: fr.page, PageNo: pageNo, mu: &fr.lock, flush: f.flush, unpin: func() { f.unpin(pageNo) }}, nil
}

func (f *FilePageFetcher) NewPage(special []byte) (uint32, *WriteGuard, error) {
	f.mu.Lock()
	p := page.NewPage(len(special))
	copy(p.SpecialData(), special)
	fr := &frame{page: p, pins: 1}
	pageNo := f.pageCnt
	f.pageCnt++
	f.frames[pageNo] = fr
	f.evictLocked()
	f.mu.Unlock()

	log.Debugf("initializing new page %d with write lock", pageNo)
	if err := f.flush(pageNo, p); err != nil {
		return 0, nil, err
	}
	fr.lock.Lock()
	return pageNo, &WriteGuard{Page: fr.page, PageNo: pageNo, mu: &fr.lock, flush: f.flush, unpin: func() { f.unpin(pageNo) }}, nil
}

func (f *FilePageFetcher) PageCount() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCnt
}

func (f *FilePageFetcher) Close() error {
	if err := f.file.Sync(); err != nil {
		return errors.MaybeAddStack(err)
	}
	return errors.MaybeAddStack(f.file.Close())
}

package fetcher

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/storage/page"
)

type frame struct {
	page *page.Page
	lock sync.RWMutex
	pins int
}

// InMemoryPageFetcher keeps all pages in resident frames. Frames are
// allocated on demand and never evicted.
type InMemoryPageFetcher struct {
	mu     sync.Mutex
	frames []*frame
}

func NewInMemoryPageFetcher() *InMemoryPageFetcher {
	return &InMemoryPageFetcher{}
}

func (f *InMemoryPageFetcher) frameFor(pageNo uint32) (*frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(pageNo) >= len(f.frames) {
		return nil, errors.NewSprouterErrorf(errors.UnknownPage, "page %d has not been allocated", pageNo)
	}
	return f.frames[pageNo], nil
}

func (f *InMemoryPageFetcher) FetchRead(pageNo uint32) (*ReadGuard, error) {
	fr, err := f.frameFor(pageNo)
	if err != nil {
		return nil, err
	}
	log.Debugf("acquiring read lock for page %d", pageNo)
	fr.lock.RLock()
	return &ReadGuard{Page: fr.page, PageNo: pageNo, mu: &fr.lock}, nil
}

func (f *InMemoryPageFetcher) FetchWrite(pageNo uint32) (*WriteGuard, error) {
	fr, err := f.frameFor(pageNo)
	if err != nil {
		return nil, err
	}
	log.Debugf("acquiring write lock for page %d", pageNo)
	fr.lock.Lock()
	return &WriteGuard{Page: fr.page, PageNo: pageNo, mu: &fr.lock}, nil
}

func (f *InMemoryPageFetcher) NewPage(special []byte) (uint32, *WriteGuard, error) {
	f.mu.Lock()
	fr := &frame{page: page.NewPage(len(special))}
	copy(fr.page.SpecialData(), special)
	pageNo := uint32(len(f.frames))
	f.frames = append(f.frames, fr)
	f.mu.Unlock()

	log.Debugf("initializing new page %d with write lock", pageNo)
	fr.lock.Lock()
	return pageNo, &WriteGuard{Page: fr.page, PageNo: pageNo, mu: &fr.lock}, nil
}

func (f *InMemoryPageFetcher) PageCount() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(len(f.frames))
}

func (f *InMemoryPageFetcher) Close() error {
	return nil
}

// Package fetcher mediates access to pages. A fetcher hands out guards that
// hold a per page read or write lock until released; the file backed
// implementation also flushes dirty frames on write release.
package fetcher

import (
	"sync"

	"github.com/sprouterdb/sprouter/storage/page"
)

// ReadGuard provides read access to a fetched page until Release is called.
type ReadGuard struct {
	Page   *page.Page
	PageNo uint32
	mu     *sync.RWMutex
	unpin  func()
}

func (g *ReadGuard) Release() {
	if g.mu != nil {
		g.mu.RUnlock()
		g.mu = nil
		if g.unpin != nil {
			g.unpin()
		}
	}
}

// WriteGuard provides exclusive access to a fetched page until Release is
// called. Releasing flushes the frame on persistent fetchers.
type WriteGuard struct {
	Page   *page.Page
	PageNo uint32
	mu     *sync.RWMutex
	flush  func(pageNo uint32, p *page.Page) error
	unpin  func()
}

func (g *WriteGuard) Release() error {
	if g.mu == nil {
		return nil
	}
	var err error
	if g.flush != nil {
		err = g.flush(g.PageNo, g.Page)
	}
	g.mu.Unlock()
	g.mu = nil
	if g.unpin != nil {
		g.unpin()
	}
	return err
}

// PageFetcher is the low level page storage interface.
type PageFetcher interface {
	FetchRead(pageNo uint32) (*ReadGuard, error)

	FetchWrite(pageNo uint32) (*WriteGuard, error)

	// NewPage allocates a fresh page initialized with the given special data
	// and returns it write locked.
	NewPage(special []byte) (uint32, *WriteGuard, error)

	PageCount() uint32

	Close() error
}

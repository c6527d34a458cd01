package proc

import (
	lru "github.com/hashicorp/golang-lru"
)

const (
	cachePageSize = 0x1000
	cacheMaxPages = 64
)

// MemCache caches fallible reads of a task's memory at page granularity.
// The cache is only valid while the task is suspended; Invalidate must be
// called every time the task is resumed.
type MemCache struct {
	t     Task
	pages *lru.Cache
}

// NewMemCache returns a cache over t's ReadBytesFallible.
func NewMemCache(t Task) *MemCache {
	pages, _ := lru.New(cacheMaxPages)
	return &MemCache{t: t, pages: pages}
}

// Invalidate drops every cached page.
func (m *MemCache) Invalidate() {
	m.pages.Purge()
}

// page returns the resident prefix of the page at pageAddr, reading it
// from the task on a cache miss. A page that is only partially resident is
// cached short.
func (m *MemCache) page(pageAddr uint64) ([]byte, error) {
	if cached, ok := m.pages.Get(pageAddr); ok {
		return cached.([]byte), nil
	}
	buf := make([]byte, cachePageSize)
	n, err := m.t.ReadBytesFallible(pageAddr, buf)
	if n <= 0 {
		return nil, err
	}
	data := buf[:n]
	m.pages.Add(pageAddr, data)
	return data, nil
}

// ReadFallible reads up to len(buf) bytes of the task's memory starting at
// addr, serving from cached pages where possible. Like the underlying
// primitive it may return fewer bytes than requested when part of the
// range is not resident.
func (m *MemCache) ReadFallible(addr uint64, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		cur := addr + uint64(total)
		pageAddr := cur &^ uint64(cachePageSize-1)
		data, err := m.page(pageAddr)
		if err != nil || data == nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		off := int(cur - pageAddr)
		if off >= len(data) {
			// Page resident only up to off: the range ends here.
			return total, nil
		}
		n := copy(buf[total:], data[off:])
		total += n
		if off+n < cachePageSize && total < len(buf) {
			// Short page mid-range.
			return total, nil
		}
	}
	return total, nil
}

package services

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrPageBusy     = errors.New("page is busy")
	ErrPageNotFound = errors.New("page not found")
	ErrPageLocked   = errors.New("page is locked")
	ErrPageExists   = errors.New("page already exists")
	ErrInvalidInput = errors.New("invalid input")
)

var errPageNameRequired = fmt.Errorf("%w: page name is required", ErrInvalidInput)

// pageLocks tracks which pages have a transform or write in flight. A second
// acquisition of the same page fails immediately instead of waiting.
type pageLocks struct {
	mu         sync.Mutex
	inProgress map[string]bool
}

func newPageLocks() *pageLocks {
	return &pageLocks{inProgress: make(map[string]bool)}
}

// acquire marks the page as in progress; false means someone else holds it.
func (l *pageLocks) acquire(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inProgress[name] {
		return false
	}
	l.inProgress[name] = true
	return true
}

func (l *pageLocks) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inProgress, name)
}

func (l *pageLocks) held(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inProgress[name]
}

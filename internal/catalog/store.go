package catalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/model"
)

// ServiceLister is the slice of the API client the catalog store needs.
type ServiceLister interface {
	ListServices(ctx context.Context, filter model.ServiceFilter) (*model.ServicePage, error)
}

// Store holds the current service listing. Rapid filter changes issue
// overlapping fetches; a generation counter makes sure a response that was
// superseded before it completed never overwrites fresher state.
type Store struct {
	api ServiceLister

	mu     sync.Mutex
	gen    uint64
	page   *model.ServicePage
	filter model.ServiceFilter
}

func NewStore(api ServiceLister) *Store {
	return &Store{api: api}
}

// Refresh fetches the listing for filter and installs the result unless a
// newer Refresh was started in the meantime. The fetched page is returned to
// the caller either way.
func (s *Store) Refresh(ctx context.Context, filter model.ServiceFilter) (*model.ServicePage, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	page, err := s.api.ListServices(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		log.Debug().Msg("dropping superseded listing response")
		return page, err
	}
	if err != nil {
		return nil, err
	}
	s.page = page
	s.filter = filter
	return page, nil
}

// Current returns the last installed page and the filter that produced it.
func (s *Store) Current() (*model.ServicePage, model.ServiceFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page, s.filter
}

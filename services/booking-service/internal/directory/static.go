// Package directory reads clinics and their services, which are owned by the
// clinic management service and read-only here.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// Static serves a fixed set of clinics and services, e.g. from a YAML file.
type Static struct {
	mu       sync.RWMutex
	clinics  map[string]model.Clinic
	services map[string]model.Service
}

func NewStatic(clinics []model.Clinic, services []model.Service) (*Static, error) {
	s := &Static{clinics: map[string]model.Clinic{}, services: map[string]model.Service{}}
	for _, c := range clinics {
		if c.ID == "" {
			return nil, fmt.Errorf("clinic without id")
		}
		s.clinics[c.ID] = c
	}
	for _, svc := range services {
		if _, ok := s.clinics[svc.ClinicID]; !ok {
			return nil, fmt.Errorf("service %q references unknown clinic %q", svc.ID, svc.ClinicID)
		}
		s.services[svc.ID] = svc
	}
	return s, nil
}

func (s *Static) GetClinic(_ context.Context, id string) (model.Clinic, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clinics[id]
	return c, ok, nil
}

func (s *Static) GetService(_ context.Context, id string) (model.Service, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	return svc, ok, nil
}

// PutClinic replaces or adds a clinic.
func (s *Static) PutClinic(c model.Clinic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinics[c.ID] = c
}

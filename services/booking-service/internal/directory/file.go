package directory

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// LoadFile builds a Static directory from a YAML document of the form
//
//	clinics:
//	  - id: clinic-1
//	    timezone: Europe/Berlin
//	    business_hours:
//	      monday: {open: "09:00", close: "17:00", is_open: true}
//	services:
//	  - {id: checkup, clinic_id: clinic-1, duration_minutes: 30}
func LoadFile(path string) (*Static, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("directory file: %w", err)
	}
	src := config.NewSource()
	if err := src.ReadFile(path); err != nil {
		return nil, err
	}
	var (
		clinics  []model.Clinic
		services []model.Service
	)
	if err := src.Unmarshal("clinics", &clinics); err != nil {
		return nil, fmt.Errorf("decode clinics: %w", err)
	}
	if err := src.Unmarshal("services", &services); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	return NewStatic(clinics, services)
}

package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// Postgres reads the clinic directory replicated into the booking database.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetClinic(ctx context.Context, id string) (model.Clinic, bool, error) {
	var (
		c     model.Clinic
		hours []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, timezone, business_hours
		FROM clinics
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Timezone, &hours)
	if db.IsNoRows(err) {
		return model.Clinic{}, false, nil
	}
	if err != nil {
		return model.Clinic{}, false, err
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &c.BusinessHours); err != nil {
			return model.Clinic{}, false, fmt.Errorf("clinic %s business_hours: %w", id, err)
		}
	}
	return c, true, nil
}

func (p *Postgres) GetService(ctx context.Context, id string) (model.Service, bool, error) {
	var s model.Service
	err := p.pool.QueryRow(ctx, `
		SELECT id, clinic_id, duration_minutes
		FROM clinic_services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.ClinicID, &s.DurationMinutes)
	if db.IsNoRows(err) {
		return model.Service{}, false, nil
	}
	if err != nil {
		return model.Service{}, false, err
	}
	return s, true, nil
}

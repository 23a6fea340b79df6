package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

const accidentColumns = `id, date_time, location, description, weather_conditions, road_conditions, vehicles, created_at`

func (p *Postgres) CreateAccidentReport(ctx context.Context, r AccidentReport) (AccidentReport, error) {
	if r.Vehicles == nil {
		r.Vehicles = []Vehicle{}
	}
	vehicles, err := json.Marshal(r.Vehicles)
	if err != nil {
		return AccidentReport{}, fmt.Errorf("encode vehicles: %w", err)
	}
	row := p.pool.QueryRow(ctx,
		`INSERT INTO accident_reports (date_time, location, description, weather_conditions, road_conditions, vehicles)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+accidentColumns,
		r.DateTime, r.Location, r.Description, r.WeatherConditions, r.RoadConditions, vehicles)
	out, err := scanAccident(row)
	if err != nil {
		return AccidentReport{}, fmt.Errorf("insert accident report: %w", err)
	}
	return out, nil
}

func (p *Postgres) ListAccidentReports(ctx context.Context) ([]AccidentReport, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+accidentColumns+` FROM accident_reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accident reports: %w", err)
	}
	defer rows.Close()

	out := []AccidentReport{}
	for rows.Next() {
		r, err := scanAccident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan accident report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetAccidentReport(ctx context.Context, id int64) (AccidentReport, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+accidentColumns+` FROM accident_reports WHERE id = $1`, id)
	r, err := scanAccident(row)
	if err != nil {
		return AccidentReport{}, notFound(err, "accident report %d", id)
	}
	return r, nil
}

func scanAccident(row pgx.Row) (AccidentReport, error) {
	var r AccidentReport
	var vehicles []byte
	if err := row.Scan(&r.ID, &r.DateTime, &r.Location, &r.Description,
		&r.WeatherConditions, &r.RoadConditions, &vehicles, &r.CreatedAt); err != nil {
		return AccidentReport{}, err
	}
	if err := json.Unmarshal(vehicles, &r.Vehicles); err != nil {
		return AccidentReport{}, fmt.Errorf("decode vehicles: %w", err)
	}
	return r, nil
}

const violationColumns = `id, date_time, location, violation_type, description, offender_name, license_plate, created_at`

func (p *Postgres) CreateViolationReport(ctx context.Context, r ViolationReport) (ViolationReport, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO violation_reports (date_time, location, violation_type, description, offender_name, license_plate)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+violationColumns,
		r.DateTime, r.Location, r.ViolationType, r.Description, r.OffenderName, r.LicensePlate)
	out, err := scanViolation(row)
	if err != nil {
		return ViolationReport{}, fmt.Errorf("insert violation report: %w", err)
	}
	return out, nil
}

func (p *Postgres) ListViolationReports(ctx context.Context) ([]ViolationReport, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+violationColumns+` FROM violation_reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query violation reports: %w", err)
	}
	defer rows.Close()

	out := []ViolationReport{}
	for rows.Next() {
		r, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan violation report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetViolationReport(ctx context.Context, id int64) (ViolationReport, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+violationColumns+` FROM violation_reports WHERE id = $1`, id)
	r, err := scanViolation(row)
	if err != nil {
		return ViolationReport{}, notFound(err, "violation report %d", id)
	}
	return r, nil
}

func scanViolation(row pgx.Row) (ViolationReport, error) {
	var r ViolationReport
	err := row.Scan(&r.ID, &r.DateTime, &r.Location, &r.ViolationType,
		&r.Description, &r.OffenderName, &r.LicensePlate, &r.CreatedAt)
	return r, err
}

const wantedColumns = `id, person_id, name, age, height, weight, last_location, last_seen, warrants, danger_level, created_at`

func (p *Postgres) CreateWantedPerson(ctx context.Context, w WantedPerson) (WantedPerson, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO wanted_persons (person_id, name, age, height, weight, last_location, last_seen, warrants, danger_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+wantedColumns,
		w.PersonID, w.Name, w.Age, w.Height, w.Weight, w.LastLocation, w.LastSeen, w.Warrants, w.DangerLevel)
	out, err := scanWanted(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return WantedPerson{}, fmt.Errorf("%w: person %s", ErrDuplicate, w.PersonID)
		}
		return WantedPerson{}, fmt.Errorf("insert wanted person: %w", err)
	}
	return out, nil
}

func (p *Postgres) ListWantedPersons(ctx context.Context) ([]WantedPerson, error) {
	return p.queryWanted(ctx, `SELECT `+wantedColumns+` FROM wanted_persons ORDER BY id`)
}

func (p *Postgres) GetWantedPerson(ctx context.Context, id int64) (WantedPerson, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+wantedColumns+` FROM wanted_persons WHERE id = $1`, id)
	w, err := scanWanted(row)
	if err != nil {
		return WantedPerson{}, notFound(err, "wanted person %d", id)
	}
	return w, nil
}

func (p *Postgres) GetWantedPersonByPersonID(ctx context.Context, personID string) (WantedPerson, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+wantedColumns+` FROM wanted_persons WHERE person_id = $1`, personID)
	w, err := scanWanted(row)
	if err != nil {
		return WantedPerson{}, notFound(err, "person %s", personID)
	}
	return w, nil
}

func (p *Postgres) SearchWantedPersons(ctx context.Context, query string) ([]WantedPerson, error) {
	return p.queryWanted(ctx,
		`SELECT `+wantedColumns+` FROM wanted_persons
		 WHERE strpos(lower(name), lower($1)) > 0
		    OR strpos(lower(person_id), lower($1)) > 0
		    OR strpos(lower(warrants), lower($1)) > 0
		    OR strpos(lower(last_location), lower($1)) > 0
		 ORDER BY id`, query)
}

func (p *Postgres) queryWanted(ctx context.Context, sql string, args ...any) ([]WantedPerson, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query wanted persons: %w", err)
	}
	defer rows.Close()

	out := []WantedPerson{}
	for rows.Next() {
		w, err := scanWanted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wanted person: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWanted(row pgx.Row) (WantedPerson, error) {
	var w WantedPerson
	err := row.Scan(&w.ID, &w.PersonID, &w.Name, &w.Age, &w.Height, &w.Weight,
		&w.LastLocation, &w.LastSeen, &w.Warrants, &w.DangerLevel, &w.CreatedAt)
	return w, err
}

func (p *Postgres) GetWeather(ctx context.Context, location string) (Weather, error) {
	var w Weather
	err := p.pool.QueryRow(ctx,
		`SELECT id, location, temperature, conditions, updated_at FROM weather WHERE location = $1`,
		location).Scan(&w.ID, &w.Location, &w.Temperature, &w.Conditions, &w.UpdatedAt)
	if err != nil {
		return Weather{}, notFound(err, "weather for %q", location)
	}
	return w, nil
}

func (p *Postgres) UpdateWeather(ctx context.Context, in Weather) (Weather, error) {
	var w Weather
	err := p.pool.QueryRow(ctx,
		`INSERT INTO weather (location, temperature, conditions, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (location) DO UPDATE
		 SET temperature = EXCLUDED.temperature, conditions = EXCLUDED.conditions, updated_at = NOW()
		 RETURNING id, location, temperature, conditions, updated_at`,
		in.Location, in.Temperature, in.Conditions,
	).Scan(&w.ID, &w.Location, &w.Temperature, &w.Conditions, &w.UpdatedAt)
	if err != nil {
		return Weather{}, fmt.Errorf("upsert weather: %w", err)
	}
	return w, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
	}
	return fmt.Errorf("query "+format+": %w", append(args, err)...)
}

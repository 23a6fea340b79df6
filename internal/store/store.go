// Package store keeps the dispatch records that sit beside the navigation
// core: accident reports, violation reports, wanted persons and weather.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means no record has the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a record with the same unique key already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// Vehicle is one vehicle involved in an accident.
type Vehicle struct {
	LicensePlate string `json:"licensePlate"`
	MakeModel    string `json:"makeModel"`
	Year         string `json:"year,omitempty"`
	Color        string `json:"color,omitempty"`
}

// AccidentReport is a filed traffic accident.
type AccidentReport struct {
	ID                int64     `json:"id"`
	DateTime          string    `json:"dateTime"`
	Location          string    `json:"location"`
	Description       string    `json:"description"`
	WeatherConditions string    `json:"weatherConditions"`
	RoadConditions    string    `json:"roadConditions"`
	Vehicles          []Vehicle `json:"vehicles"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ViolationReport is a filed traffic violation.
type ViolationReport struct {
	ID            int64     `json:"id"`
	DateTime      string    `json:"dateTime"`
	Location      string    `json:"location"`
	ViolationType string    `json:"violationType"`
	Description   string    `json:"description"`
	OffenderName  string    `json:"offenderName"`
	LicensePlate  string    `json:"licensePlate,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// WantedPerson is an outstanding warrant record. PersonID is the external
// identifier and is unique.
type WantedPerson struct {
	ID           int64     `json:"id"`
	PersonID     string    `json:"personId"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Height       int       `json:"height"`
	Weight       int       `json:"weight"`
	LastLocation string    `json:"lastLocation"`
	LastSeen     time.Time `json:"lastSeen"`
	Warrants     string    `json:"warrants"`
	DangerLevel  string    `json:"dangerLevel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Weather is the cached conditions for one location.
type Weather struct {
	ID          int64     `json:"id"`
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"`
	Conditions  string    `json:"conditions"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store is the record store. Lists are ordered by id.
type Store interface {
	CreateAccidentReport(ctx context.Context, r AccidentReport) (AccidentReport, error)
	ListAccidentReports(ctx context.Context) ([]AccidentReport, error)
	GetAccidentReport(ctx context.Context, id int64) (AccidentReport, error)

	CreateViolationReport(ctx context.Context, r ViolationReport) (ViolationReport, error)
	ListViolationReports(ctx context.Context) ([]ViolationReport, error)
	GetViolationReport(ctx context.Context, id int64) (ViolationReport, error)

	CreateWantedPerson(ctx context.Context, p WantedPerson) (WantedPerson, error)
	ListWantedPersons(ctx context.Context) ([]WantedPerson, error)
	GetWantedPerson(ctx context.Context, id int64) (WantedPerson, error)
	GetWantedPersonByPersonID(ctx context.Context, personID string) (WantedPerson, error)
	// SearchWantedPersons matches query case-insensitively against name,
	// person id, warrants and last location.
	SearchWantedPersons(ctx context.Context, query string) ([]WantedPerson, error)

	GetWeather(ctx context.Context, location string) (Weather, error)
	// UpdateWeather inserts or replaces the weather for w.Location.
	UpdateWeather(ctx context.Context, w Weather) (Weather, error)

	Ping(ctx context.Context) error
	Close()
}

// seedWantedPersons and seedWeather are loaded into a fresh store.
var seedWantedPersons = []WantedPerson{
	{
		PersonID:     "TRE-78542",
		Name:         "Marc Tremblay",
		Age:          34,
		Height:       183,
		Weight:       89,
		LastLocation: "Niagara Falls, Ontario",
		LastSeen:     time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC),
		Warrants:     "Vol à main armée, Agression avec arme",
		DangerLevel:  "Dangereux",
	},
	{
		PersonID:     "LAN-45123",
		Name:         "Sophie Langlois",
		Age:          29,
		Height:       168,
		Weight:       62,
		LastLocation: "Toronto, Ontario",
		LastSeen:     time.Date(2023, 5, 17, 0, 0, 0, 0, time.UTC),
		Warrants:     "Fraude, Faux et usage de faux",
		DangerLevel:  "Surveillance",
	},
}

var seedWeather = []Weather{
	{Location: "Toronto, ON", Temperature: 3, Conditions: "Nuageux"},
	{Location: "Niagara Falls, ON", Temperature: 2, Conditions: "Partiellement nuageux"},
}

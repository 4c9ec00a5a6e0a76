// Package search answers multi-criteria container queries, optionally
// restricted to a radius around a point and ordered by distance.
package search

import (
	"sort"
	"time"

	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/geo"
	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"
	"github.com/antomihe/SustainableCity/validation"
)

type Filters struct {
	Text      string   `json:"searchTerm"`
	Statuses  []string `json:"statuses" validate:"omitempty,dive,container_status"`
	Types     []string `json:"types" validate:"omitempty,dive,container_type"`
	Latitude  *float64 `json:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitnil,gte=-180,lte=180"`
	RadiusKm  *float64 `json:"radius" validate:"omitnil,gt=0"`
}

// Result is a container annotated with its distance from the search center.
type Result struct {
	*store.Container
	Distance *float64 `json:"distance,omitempty"`
}

type Engine struct {
	db *store.DB
}

func NewEngine(db *store.DB) *Engine {
	return &Engine{db: db}
}

func (f Filters) center() (geo.Point, float64, bool, error) {
	given := 0
	for _, set := range []bool{f.Latitude != nil, f.Longitude != nil, f.RadiusKm != nil} {
		if set {
			given++
		}
	}
	switch given {
	case 0:
		return geo.Point{}, 0, false, nil
	case 3:
		return geo.Point{Lat: *f.Latitude, Lng: *f.Longitude}, *f.RadiusKm, true, nil
	default:
		return geo.Point{}, 0, false, apperr.Validation("latitude, longitude and radius must be given together")
	}
}

// Search filters by text, status and type. With a center it keeps only
// containers within the radius (boundary included) and sorts them by
// distance; otherwise results are ordered by location.
func (e *Engine) Search(f Filters) ([]*Result, error) {
	start := time.Now()
	if err := validation.Struct(f); err != nil {
		return nil, err
	}
	center, radius, hasCenter, err := f.center()
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveSearch(start, hasCenter)

	filter := store.ContainerFilter{Text: f.Text, Statuses: f.Statuses, Types: f.Types}
	if hasCenter {
		box := geo.BoundingBox(center, radius)
		filter.Box = &box
	}
	containers, err := e.db.FindContainers(filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(containers, func(i, j int) bool {
		return containers[i].Location < containers[j].Location
	})

	results := make([]*Result, 0, len(containers))
	for _, c := range containers {
		if !hasCenter {
			results = append(results, &Result{Container: c})
			continue
		}
		if c.Coordinates == nil {
			continue
		}
		d := geo.Distance(center, c.Coordinates.Point())
		if d > radius {
			continue
		}
		results = append(results, &Result{Container: c, Distance: &d})
	}

	if hasCenter {
		sortByDistance(results)
	}
	return results, nil
}

// sortByDistance orders ascending by distance, results without one last.
func sortByDistance(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Distance, results[j].Distance
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
}

// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package proximity answers "what is near me" against aggregated place
// sets. A spatial hash grid divides geographic space into cells so a
// nearby query only inspects cells around the query point instead of
// scanning every place in the domain.
package proximity

import (
	"math"
	"sync"

	"github.com/tomtom215/gazetteer/internal/models"
)

// Grid is a spatial hash over place records, indexed by place id.
// Insert is O(1); QueryNearby is O(k) where k is the entry count in
// the cells overlapping the search radius.
type Grid struct {
	mu       sync.RWMutex
	cells    map[cellKey]*cell
	cellSize float64 // degrees
	entries  map[string]*gridEntry
}

type cellKey struct {
	X, Y int
}

type cell struct {
	entries []*gridEntry
}

type gridEntry struct {
	place   models.PlaceRecord
	cellKey cellKey
}

// NewGrid creates a grid with the given approximate cell size in
// kilometers. Smaller cells are more precise but mean more cells to
// sweep per query.
func NewGrid(cellSizeKm float64) *Grid {
	if cellSizeKm <= 0 {
		cellSizeKm = 10
	}

	// 1 degree is roughly 111km at the equator.
	return &Grid{
		cells:    make(map[cellKey]*cell),
		cellSize: cellSizeKm / 111.0,
		entries:  make(map[string]*gridEntry),
	}
}

func (g *Grid) getCellKey(lat, lng float64) cellKey {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}

	return cellKey{
		X: int(math.Floor(lng / g.cellSize)),
		Y: int(math.Floor(lat / g.cellSize)),
	}
}

// Insert adds a place to the grid, replacing any entry with the same
// place id. Places without coordinates are skipped.
func (g *Grid) Insert(place models.PlaceRecord) {
	if place.PlaceID == "" || !place.HasCoordinates() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[place.PlaceID]; ok {
		g.removeFromCellLocked(existing)
	}

	key := g.getCellKey(place.Location.Lat, place.Location.Lng)
	entry := &gridEntry{place: place, cellKey: key}

	c, ok := g.cells[key]
	if !ok {
		c = &cell{entries: make([]*gridEntry, 0, 4)}
		g.cells[key] = c
	}
	c.entries = append(c.entries, entry)
	g.entries[place.PlaceID] = entry
}

// InsertAll bulk-loads a record set.
func (g *Grid) InsertAll(records []models.PlaceRecord) {
	for i := range records {
		g.Insert(records[i])
	}
}

// Remove removes a place by id.
func (g *Grid) Remove(placeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[placeID]
	if !ok {
		return false
	}

	g.removeFromCellLocked(entry)
	delete(g.entries, placeID)
	return true
}

func (g *Grid) removeFromCellLocked(entry *gridEntry) {
	c, ok := g.cells[entry.cellKey]
	if !ok {
		return
	}

	for i, e := range c.entries {
		if e.place.PlaceID == entry.place.PlaceID {
			c.entries[i] = c.entries[len(c.entries)-1]
			c.entries = c.entries[:len(c.entries)-1]
			break
		}
	}

	if len(c.entries) == 0 {
		delete(g.cells, entry.cellKey)
	}
}

// QueryNearby returns all places within radiusKm of the point, each
// paired with its great-circle distance. Order is unspecified.
func (g *Grid) QueryNearby(lat, lng, radiusKm float64) []models.NearbyPlace {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cellsToCheck := int(math.Ceil(radiusKm/111.0/g.cellSize)) + 1
	center := g.getCellKey(lat, lng)

	var results []models.NearbyPlace

	for dx := -cellsToCheck; dx <= cellsToCheck; dx++ {
		for dy := -cellsToCheck; dy <= cellsToCheck; dy++ {
			c, ok := g.cells[cellKey{X: center.X + dx, Y: center.Y + dy}]
			if !ok {
				continue
			}

			for _, entry := range c.entries {
				dist := HaversineKm(lat, lng, entry.place.Location.Lat, entry.place.Location.Lng)
				if dist <= radiusKm {
					results = append(results, models.NearbyPlace{
						PlaceRecord: entry.place,
						DistanceKm:  dist,
					})
				}
			}
		}
	}

	return results
}

// Size returns the number of indexed places.
func (g *Grid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Clear removes all entries.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[cellKey]*cell)
	g.entries = make(map[string]*gridEntry)
}

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

package service

import (
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
)

// capacitySource yields the slot count for a class when the resource
// carries the corresponding field.
type capacitySource func(model.Resource, model.VehicleClass) (int, bool)

func specificClassSlots(res model.Resource, class model.VehicleClass) (int, bool) {
	n, ok := res.SlotsByClass[class]
	return n, ok
}

func aggregateSlots(res model.Resource, _ model.VehicleClass) (int, bool) {
	if res.TotalSlots == nil {
		return 0, false
	}
	return *res.TotalSlots, true
}

// First-present-wins: the per-class entry beats the aggregate fallback.
var capacitySources = []capacitySource{specificClassSlots, aggregateSlots}

// resolveCapacity applies the ordered fallback policy over the catalog's
// capacity fields. A winning source that resolves to a non-positive
// count rejects the same way a missing one does.
func resolveCapacity(res model.Resource, class model.VehicleClass) (int, error) {
	for _, source := range capacitySources {
		if n, ok := source(res, class); ok {
			if n <= 0 {
				return 0, errs.ErrNoCapacityConfigured
			}
			return n, nil
		}
	}
	return 0, errs.ErrNoCapacityConfigured
}

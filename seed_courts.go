package main

import (
	"context"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"court-booking-server/models"
	"court-booking-server/store"
)

func strPtr(s string) *string { return &s }

// seedCourts creates the starter catalog on an empty database.
func seedCourts(ctx context.Context, courts store.Courts, log *logrus.Logger) error {
	n, err := courts.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithField("courts", n).Info("⏭️  Courts already seeded")
		return nil
	}

	catalog := []models.Court{
		{
			Code:        "A1",
			Name:        "Sân A1",
			Type:        models.CourtTypeIndoor,
			Status:      models.CourtStatusActive,
			BasePrice:   120000,
			PeakPrice:   180000,
			Amenities:   pq.StringArray{"air_conditioning", "lighting", "locker"},
			Description: strPtr("Indoor court with sprung wooden floor"),
		},
		{
			Code:      "A2",
			Name:      "Sân A2",
			Type:      models.CourtTypeIndoor,
			Status:    models.CourtStatusActive,
			BasePrice: 120000,
			PeakPrice: 180000,
			Amenities: pq.StringArray{"air_conditioning", "lighting"},
		},
		{
			Code:        "B1",
			Name:        "Sân B1",
			Type:        models.CourtTypeOutdoor,
			Status:      models.CourtStatusActive,
			BasePrice:   80000,
			PeakPrice:   120000,
			Amenities:   pq.StringArray{"lighting"},
			Description: strPtr("Outdoor court, covered seating"),
		},
		{
			Code:        "VIP",
			Name:        "Sân VIP",
			Type:        models.CourtTypeVIP,
			Status:      models.CourtStatusActive,
			BasePrice:   200000,
			PeakPrice:   300000,
			Amenities:   pq.StringArray{"air_conditioning", "lighting", "locker", "shower", "parking"},
			Description: strPtr("Tournament court with private lounge"),
		},
	}

	for i := range catalog {
		if err := courts.Create(ctx, &catalog[i]); err != nil {
			log.WithError(err).WithField("code", catalog[i].Code).Error("❌ Failed to create court")
			return err
		}
		log.WithField("code", catalog[i].Code).Info("✅ Created court")
	}
	return nil
}

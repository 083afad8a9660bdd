package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/config"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/repository/postgres"
	"github.com/dom/medtrack/internal/service"
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

type demoMedication struct {
	name, dosage, start, end string
	instructions             string
}

var demoPatients = []struct {
	email       string
	medications []demoMedication
}{
	{
		email: "alice@example.com",
		medications: []demoMedication{
			{name: "Lisinopril", dosage: "10mg", start: "07:00", end: "10:00", instructions: "With breakfast"},
			{name: "Atorvastatin", dosage: "20mg", start: "20:00", end: "23:00"},
		},
	},
	{
		email: "bob@example.com",
		medications: []demoMedication{
			{name: "Metformin", dosage: "500mg", start: "08:00", end: "20:00", instructions: "With meals"},
			{name: "Vitamin D", dosage: "1000IU", start: "00:00", end: "23:59"},
		},
	},
}

// Seeds a database with an admin, two patients, their medications and a
// week of back-filled doses. Run with the same environment as the server.
func main() {
	adminEmail := flag.String("admin-email", "admin@example.com", "Admin account email")
	adminPassword := flag.String("admin-password", "changeme", "Admin account password")
	patientPassword := flag.String("patient-password", "patient123", "Password for the seeded patients")
	days := flag.Int("days", 7, "Days of dose history to back-fill")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	repos := postgres.NewRepositories(db)
	services := service.NewServices(repos, cfg, cache.NewNoop(), log)

	if _, err := services.Auth.EnsureBootstrapAdmin(ctx, *adminEmail, *adminPassword); err != nil {
		log.Fatal().Err(err).Msg("ensure admin")
	}
	admin, err := repos.User.GetByEmail(ctx, *adminEmail)
	if err != nil {
		log.Fatal().Err(err).Msg("load admin")
	}
	adminActor := admin.Actor()

	for _, p := range demoPatients {
		user, err := services.Admin.CreateUserAccount(ctx, adminActor, service.CreateUserInput{
			Email:    p.email,
			Password: *patientPassword,
			Role:     domain.RoleUser,
		})
		if errors.Is(err, service.ErrEmailExists) {
			log.Info().Str("email", p.email).Msg("patient exists, skipping")
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Str("email", p.email).Msg("create patient")
		}
		actor := user.Actor()

		for _, m := range p.medications {
			var instructions *string
			if m.instructions != "" {
				instructions = &m.instructions
			}
			view, err := services.Adherence.CreateMedication(ctx, actor, service.CreateMedicationInput{
				Name:         m.name,
				Dosage:       m.dosage,
				Frequency:    "daily",
				Instructions: instructions,
				StartTime:    m.start,
				EndTime:      m.end,
			})
			if err != nil {
				log.Fatal().Err(err).Str("medication", m.name).Msg("create medication")
			}

			start, _ := domain.ParseTimeOfDay(m.start)
			offset := time.Duration(start) + 30*time.Minute
			today := services.Adherence.Now().Truncate(24 * time.Hour)
			for d := *days; d >= 1; d-- {
				takenAt := today.AddDate(0, 0, -d).Add(offset)
				if _, err := services.Adherence.RecordManualDose(ctx, actor, view.Medication.ID, service.ManualDoseInput{TakenAt: takenAt}); err != nil {
					log.Fatal().Err(err).Str("medication", m.name).Msg("record dose")
				}
			}
		}

		log.Info().Str("email", p.email).Int("medications", len(p.medications)).Msg("patient seeded")
	}

	log.Info().Msg("seed complete")
}

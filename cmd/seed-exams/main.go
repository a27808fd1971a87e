package main

import (
	"context"
	"fmt"
	"time"

	"github.com/testply/guestexam-backend/internal/config"
	"github.com/testply/guestexam-backend/internal/database"
	"github.com/testply/guestexam-backend/internal/logger"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/repository"
)

type seedQuestion struct {
	text    string
	options []string
	correct int
}

type seedExam struct {
	title       string
	description string
	duration    int
	questions   []seedQuestion
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)

	// Skip seeding when a published catalog already exists, so the
	// command is safe to run on every deploy.
	existing, err := examRepo.ListPublished(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check existing catalog")
	}
	if len(existing) > 0 {
		fmt.Printf("Catalog already has %d published exams, nothing to do\n", len(existing))
		return
	}

	fmt.Println("=== Seeding Guest Exam Catalog ===")

	// The first two exams are the free tier; everything after position 1
	// is gated until the guest completes at least one exam.
	exams := []seedExam{
		{
			title:       "General Knowledge Starter",
			description: "A short warm-up quiz open to every guest.",
			duration:    10,
			questions: []seedQuestion{
				{"Which planet is known as the Red Planet?", []string{"Venus", "Mars", "Jupiter", "Mercury"}, 1},
				{"What is the chemical symbol for water?", []string{"CO2", "NaCl", "H2O", "O2"}, 2},
				{"How many continents are there on Earth?", []string{"Five", "Six", "Seven", "Eight"}, 2},
				{"Which ocean is the largest?", []string{"Atlantic", "Indian", "Arctic", "Pacific"}, 3},
				{"What gas do plants absorb from the atmosphere?", []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Hydrogen"}, 1},
			},
		},
		{
			title:       "Logic and Reasoning",
			description: "Pattern recognition and deduction problems.",
			duration:    15,
			questions: []seedQuestion{
				{"What comes next in the sequence 2, 4, 8, 16?", []string{"24", "30", "32", "64"}, 2},
				{"If all bloops are razzies and all razzies are lazzies, are all bloops lazzies?", []string{"Yes", "No", "Cannot be determined", "Only some"}, 0},
				{"A clock shows 3:15. What is the angle between the hands?", []string{"0 degrees", "7.5 degrees", "15 degrees", "30 degrees"}, 1},
				{"Which number is the odd one out: 3, 5, 11, 14, 17?", []string{"3", "11", "14", "17"}, 2},
				{"What comes next: J, F, M, A, M, ...?", []string{"J", "A", "S", "N"}, 0},
			},
		},
		{
			title:       "Mathematics Challenge",
			description: "Arithmetic and algebra for registered candidates.",
			duration:    20,
			questions: []seedQuestion{
				{"What is 17 * 6?", []string{"96", "102", "108", "112"}, 1},
				{"Solve for x: 2x + 6 = 14", []string{"2", "3", "4", "5"}, 2},
				{"What is the square root of 144?", []string{"10", "11", "12", "14"}, 2},
				{"What is 25% of 240?", []string{"48", "54", "60", "72"}, 2},
				{"If a triangle has angles 90 and 45 degrees, what is the third angle?", []string{"30", "45", "55", "60"}, 1},
			},
		},
		{
			title:       "Science Deep Dive",
			description: "Physics, chemistry, and biology for registered candidates.",
			duration:    25,
			questions: []seedQuestion{
				{"What force keeps planets in orbit around the sun?", []string{"Magnetism", "Friction", "Gravity", "Inertia"}, 2},
				{"What is the powerhouse of the cell?", []string{"Nucleus", "Ribosome", "Mitochondria", "Golgi apparatus"}, 2},
				{"What is the atomic number of carbon?", []string{"4", "6", "8", "12"}, 1},
				{"At what temperature does water boil at sea level?", []string{"90 C", "95 C", "100 C", "110 C"}, 2},
				{"Which particle has a negative charge?", []string{"Proton", "Neutron", "Electron", "Photon"}, 2},
			},
		},
	}

	for pos, se := range exams {
		def := &model.ExamDefinition{
			Title:           se.title,
			Description:     se.description,
			DurationMinutes: se.duration,
			Position:        pos,
			Status:          model.ExamStatusPublished,
		}
		if err := examRepo.CreateExam(ctx, def); err != nil {
			log.Fatal().Err(err).Str("title", se.title).Msg("Failed to create exam")
		}

		for i, sq := range se.questions {
			options := make([]model.Option, len(sq.options))
			for j, text := range sq.options {
				options[j] = model.Option{
					ID:   fmt.Sprintf("opt-%d", j+1),
					Text: text,
				}
			}
			q := &model.Question{
				ExamID:          def.ID,
				Text:            sq.text,
				Options:         options,
				CorrectOptionID: options[sq.correct].ID,
				OrderNum:        i + 1,
			}
			if err := examRepo.CreateQuestion(ctx, q); err != nil {
				log.Fatal().Err(err).Str("exam", se.title).Int("question", i+1).Msg("Failed to create question")
			}
		}

		fmt.Printf("Seeded exam %d: %s (%d questions)\n", pos, se.title, len(se.questions))
	}

	fmt.Println("=== Seeding complete ===")
}

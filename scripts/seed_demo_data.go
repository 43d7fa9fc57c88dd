package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/internal/infrastructure/database"
	"github.com/salesight/salesight/pkg/config"
)

func main() {
	log.Println("🚀 Seeding demo pipeline data...")

	// Load configuration from .env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	log.Println("🗑️  Cleaning up existing demo data...")
	db.Where("name LIKE ?", "Demo %").Delete(&entities.Opportunity{})

	demoOpps := []struct {
		Name  string
		Stage string
	}{
		{Name: "Demo Acme renewal", Stage: "negotiation"},
		{Name: "Demo Globex expansion", Stage: "discovery"},
	}

	owner := uuid.New()

	for _, d := range demoOpps {
		opp := &entities.Opportunity{
			ID:      uuid.New(),
			OwnerID: owner,
			Name:    d.Name,
			Stage:   d.Stage,
		}
		if err := db.Create(opp).Error; err != nil {
			log.Printf("❌ Failed to create opportunity %s: %v", d.Name, err)
			continue
		}

		// Two pending transcripts so a full pipeline run reaches the
		// consolidation threshold.
		sources := []entities.TranscriptSource{
			entities.TranscriptSourceFireflies,
			entities.TranscriptSourceOtter,
		}
		for i, src := range sources {
			tr := entities.NewTranscript(
				opp.ID, src,
				time.Now().AddDate(0, 0, -7*(len(sources)-i)),
				demoTranscriptText(d.Name, i+1),
			)
			if err := db.Create(tr).Error; err != nil {
				log.Printf("❌ Failed to create transcript for %s: %v", d.Name, err)
				continue
			}
			job := entities.NewExtractJob(tr.ID, opp.ID)
			if err := db.Create(job).Error; err != nil {
				log.Printf("❌ Failed to enqueue extract job for %s: %v", d.Name, err)
			}
		}

		log.Printf("✅ Seeded %s (owner %s)", d.Name, owner)
	}

	log.Println("🎉 Done. Start the worker to run the pipeline over the seeded jobs.")
}

func demoTranscriptText(oppName string, callNo int) string {
	lines := []string{
		"Rep: Thanks for making time again, let's pick up where we left off.",
		"Customer: Sure. The big pain is still that pipeline reviews are fully manual, it eats most of a day every week.",
		"Customer: Our goal this quarter is to cut forecast prep to under an hour and get board-ready numbers out of the tool.",
		"Rep: Understood. Who else needs to sign off before we can move?",
		"Customer: Our VP of Sales and the RevOps lead, then security review. Budget is already approved.",
		"Rep: Great, let's line up the security review for next week.",
	}
	return fmt.Sprintf("Call %d for %s\n%s", callNo, oppName, strings.Repeat(strings.Join(lines, "\n")+"\n", 2))
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/zzy10151020/MBTI-System-sub000/internal/config"
	"github.com/zzy10151020/MBTI-System-sub000/internal/db"
	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

// bootstrap creates the configured admin account and, when seeding is enabled and no
// questionnaire exists yet, a published sample questionnaire.
func bootstrap(ctx context.Context, cfg *config.Config, auth *services.AuthService, qs *services.QuestionnaireService, store *db.Store) error {
	if cfg.Admin.Password == "" {
		log.Printf("no admin password configured; skipping admin bootstrap")
	} else {
		created, err := auth.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		if created {
			log.Printf("created admin account %q", cfg.Admin.Username)
		}
	}
	if !cfg.Seed {
		return nil
	}
	admin, err := store.FindUserByUsername(ctx, cfg.Admin.Username)
	if err != nil {
		return err
	}
	if admin == nil || admin.Role != models.RoleAdmin {
		return fmt.Errorf("seed requires admin account %q", cfg.Admin.Username)
	}
	return seedSample(ctx, qs, admin)
}

type sampleQuestion struct {
	dim      models.Dimension
	content  string
	positive string
	negative string
}

// Two statements per axis; the positive option leans to the first letter of the axis.
var sampleQuestions = []sampleQuestion{
	{models.DimensionEI, "At a party you usually...", "talk with many people, including strangers", "talk with a few people you know"},
	{models.DimensionEI, "After a busy week you recharge by...", "going out with friends", "spending time alone"},
	{models.DimensionSN, "You trust more...", "experience and facts", "hunches and possibilities"},
	{models.DimensionSN, "When learning something new you prefer...", "concrete step by step examples", "the big picture first"},
	{models.DimensionTF, "When making a decision you weigh more...", "logic and consistency", "people and harmony"},
	{models.DimensionTF, "Feedback you give is usually...", "direct and objective", "tactful and encouraging"},
	{models.DimensionJP, "Before a trip you...", "plan the itinerary in advance", "keep options open"},
	{models.DimensionJP, "Deadlines make you...", "finish early", "work best near the end"},
}

func seedSample(ctx context.Context, qs *services.QuestionnaireService, admin *models.User) error {
	page, err := qs.List(ctx, models.RoleAdmin, true, 1, 0)
	if err != nil {
		return err
	}
	if page.Total > 0 {
		return nil
	}
	title := "MBTI quick test"
	desc := "Eight questions, two per dimension."
	q, err := qs.Create(ctx, admin, services.QuestionnaireInput{Title: &title, Description: &desc})
	if err != nil {
		return fmt.Errorf("seed questionnaire: %w", err)
	}
	plus, minus := 1, -1
	for _, sq := range sampleQuestions {
		in := services.QuestionInput{
			Content:   &sq.content,
			Dimension: &sq.dim,
			Options: []services.OptionInput{
				{Content: &sq.positive, Score: &plus},
				{Content: &sq.negative, Score: &minus},
			},
		}
		if _, err := qs.AddQuestion(ctx, admin, q.ID, in); err != nil {
			return fmt.Errorf("seed question: %w", err)
		}
	}
	published := true
	if _, err := qs.Update(ctx, admin, q.ID, services.QuestionnaireInput{Published: &published}); err != nil {
		return fmt.Errorf("publish sample: %w", err)
	}
	log.Printf("seeded sample questionnaire %s", q.ID)
	return nil
}

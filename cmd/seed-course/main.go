package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/courseware-backend/internal/block"
	"github.com/stemsi/courseware-backend/internal/bootstrap"
	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/logger"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/repository"
	"github.com/stemsi/courseware-backend/internal/service"
)

const seedPassword = "stemsijaya"

type seedBlock struct {
	kind    model.BlockType
	title   string
	content string
	options string
	key     string
	points  float64
}

type seedUser struct {
	email, name string
	role        model.Role
}

type seedPage struct {
	title  string
	blocks []seedBlock
}

var pages = []seedPage{
	{
		title: "Pengenalan Sel",
		blocks: []seedBlock{
			{kind: model.BlockContent, title: "Apa itu sel?", content: "Sel adalah unit terkecil dari makhluk hidup."},
			{kind: model.BlockYesNo, title: "Apakah semua makhluk hidup tersusun atas sel?",
				options: `{"labels":{"yes":"Ya","no":"Tidak"}}`, key: `{"answer":"yes"}`, points: 1},
		},
	},
	{
		title: "Organel",
		blocks: []seedBlock{
			{kind: model.BlockMCQ, title: "Organel penghasil energi adalah",
				options: `["Ribosom","Mitokondria","Lisosom","Vakuola"]`, key: `{"correct_index":1}`, points: 2},
			{kind: model.BlockFileUpload, title: "Unggah gambar sel", content: "Gambar sel hewan dan beri label."},
			{kind: model.BlockVideo, title: "Jelaskan fungsi nukleus", content: "Rekam penjelasan maksimal dua menit."},
		},
	},
}

var students = []string{"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo"}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer closeStores()

	authService := service.NewAuthService(cfg, stores.Users, log)

	fmt.Println("=== Seeding Demo Course ===")

	course := &model.Course{Code: "BIO-X", Title: "Biologi Kelas X"}
	if err := stores.Courses.CreateCourse(ctx, course); err != nil {
		log.Fatal().Err(err).Msg("Failed to create course")
	}
	section := &model.Section{CourseID: course.ID, Title: "Bab 1: Sel"}
	if err := stores.Courses.CreateSection(ctx, section); err != nil {
		log.Fatal().Err(err).Msg("Failed to create section")
	}
	fmt.Printf("Created course %s (%s)\n", course.Code, course.ID)

	blockCount := 0
	for _, sp := range pages {
		page := &model.Page{SectionID: section.ID, Title: sp.title}
		if err := stores.Pages.Append(ctx, page); err != nil {
			log.Fatal().Err(err).Msg("Failed to create page")
		}
		for _, sb := range sp.blocks {
			b, err := buildBlock(page, sb)
			if err != nil {
				log.Fatal().Err(err).Str("title", sb.title).Msg("Invalid seed block")
			}
			if err := stores.Blocks.Append(ctx, b); err != nil {
				log.Fatal().Err(err).Msg("Failed to create block")
			}
			blockCount++
		}
	}
	fmt.Printf("Created %d pages with %d blocks\n", len(pages), blockCount)

	users := []seedUser{{"guru@stemsi.test", "Guru Biologi", model.RoleTeacher}}
	for i, name := range students {
		users = append(users, seedUser{fmt.Sprintf("siswa%d@stemsi.test", i+1), name, model.RoleStudent})
	}

	created := 0
	for _, u := range users {
		_, err := authService.CreateUser(ctx, u.email, u.name, seedPassword, u.role)
		switch {
		case err == nil:
			created++
		case errors.Is(err, repository.ErrDuplicateEmail):
			fmt.Printf("Skipping existing user %s\n", u.email)
		default:
			fmt.Printf("Error creating user %s: %v\n", u.email, err)
		}
	}

	fmt.Printf("\nSeed completed! Added %d/%d users (password: %s).\n", created, len(users), seedPassword)
}

func buildBlock(page *model.Page, sb seedBlock) (*model.Block, error) {
	b, err := block.New(sb.kind, 0)
	if err != nil {
		return nil, err
	}
	b.PageID = page.ID
	b.Title = sb.title
	b.Content = sb.content
	b.MaxPoints = sb.points
	if sb.options != "" {
		b.Options = json.RawMessage(sb.options)
	}
	if sb.key != "" {
		b.CorrectAnswer = json.RawMessage(sb.key)
	}

	req := model.UpdateBlockRequest{Options: b.Options, CorrectAnswer: b.CorrectAnswer}
	if err := block.CheckEdit(b.Type, req); err != nil {
		return nil, err
	}
	return &b, nil
}

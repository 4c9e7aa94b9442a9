// Command main runs the database seeder for the blog backend.
package main

import (
	"context"
	"flag"
	"log"

	"blogapi/internal/bootstrap"
	"blogapi/internal/config"
	"blogapi/internal/middleware"
	"blogapi/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	// Parse command line flags
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Maximum top-level comments per post")
	likes := flag.Int("likes", defaults.LikesPerPost, "Maximum likes per post")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread timestamps over this many past days")
	randSeed := flag.Int64("rand-seed", 0, "Seed for reproducible content (0 = random)")
	shouldClean := flag.Bool("clean", false, "Delete existing blog data before seeding")
	taxonomyOnly := flag.Bool("taxonomy-only", false, "Only get-or-create the sample categories and tags")
	fast := flag.Bool("fast", false, "Hash the shared password at minimum bcrypt cost")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Configure(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedTaxonomy: *taxonomyOnly})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:        *numUsers,
		NumPosts:        *numPosts,
		CommentsPerPost: *comments,
		LikesPerPost:    *likes,
		ShouldClean:     *shouldClean,
		FastHash:        *fast,
		MaxDays:         *maxDays,
		RandSeed:        *randSeed,
	})

	if *taxonomyOnly {
		log.Println("✓ Sample categories and tags are in place")
		return
	}

	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)
	report, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d posts, %d comments, %d likes.", report.Users, report.Posts, report.Comments, report.Likes)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alphabot-ai/infobase/internal/client"
	"github.com/alphabot-ai/infobase/internal/logging"
	"github.com/alphabot-ai/infobase/internal/model"
)

var users = []struct {
	name    string
	skills  []string
	project string
}{
	{"ana", []string{"go", "sqlite"}, "infobase"},
	{"bob", []string{"networking"}, "edge-proxy"},
	{"chen", []string{"kubernetes", "go"}, ""},
	{"dara", []string{"postgres"}, "ledger"},
	{"eli", []string{"rust", "wasm"}, ""},
}

var questions = []model.QuestionInput{
	{Title: "How do I close a channel safely?", Description: "Several goroutines send on it. Who should close it and when?", Tags: []string{"go", "concurrency"}},
	{Title: "SQLite busy errors under load", Description: "Writes fail with SQLITE_BUSY when two requests arrive together.", Tags: []string{"sqlite", "database"}},
	{Title: "Graceful shutdown for an HTTP server", Description: "What is the right order for draining connections on SIGTERM?", Tags: []string{"go", "http"}},
	{Title: "Choosing between ed25519 and secp256k1", Description: "We sign login challenges. Which curve should new clients use?", Tags: []string{"crypto", "auth"}},
	{Title: "Rate limiting per client IP", Description: "Behind a proxy every request seems to come from the same address.", Tags: []string{"http", "security"}},
	{Title: "Why does my optimistic update flicker?", Description: "The vote count jumps back for a moment after the server replies.", Tags: []string{"frontend", "state"}},
}

var answers = []string{
	"Only the sender that knows no more values will come should close it. With many senders, use a WaitGroup and close after Wait.",
	"Set a busy timeout and keep a single writer connection. WAL mode helps readers too.",
	"Stop accepting, call Shutdown with a deadline, then close the database.",
	"ed25519 is simpler and faster. Pick secp256k1 only if keys come from wallets.",
	"Trust X-Forwarded-For only from your own proxy and take the left-most address.",
	"Apply the server's count only if it matches the id you sent, otherwise drop it.",
	"A benchmark would settle this. Do you have numbers?",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "infobase API URL")
	password := flag.String("password", "seed-password", "Password for every seeded account")
	flag.Parse()

	logger := logging.New("info", "text", os.Stderr)
	ctx := context.Background()
	logger.Info("seeding", "url", *baseURL)

	// Register and log in every user.
	clients := make([]*client.Client, len(users))
	suffix := time.Now().Unix()
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range users {
		g.Go(func() error {
			c := client.New(*baseURL, client.WithLogger(logger))
			email := fmt.Sprintf("%s+%d@example.com", u.name, suffix)
			if _, err := c.Register(gctx, model.RegisterInput{
				Email: email, Password: *password, Name: u.name, Skills: u.skills, Project: u.project,
			}); err != nil {
				return fmt.Errorf("register %s: %w", u.name, err)
			}
			if _, err := c.Login(gctx, email, *password); err != nil {
				return fmt.Errorf("login %s: %w", u.name, err)
			}
			clients[i] = c
			logger.Info("registered", "user", u.name, "email", email)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("seed users failed", "error", err)
		os.Exit(1)
	}

	// Ask questions from random users.
	type asked struct {
		q      model.Question
		author int
	}
	var posted []asked
	for _, in := range questions {
		i := rand.IntN(len(clients))
		q, err := clients[i].CreateQuestion(ctx, in)
		if err != nil {
			logger.Warn("ask failed", "title", in.Title, "error", err)
			continue
		}
		posted = append(posted, asked{q: q, author: i})
		logger.Info("asked", "question", q.ID, "by", users[i].name)
		time.Sleep(50 * time.Millisecond)
	}

	// Answer each question from other users, sometimes accepting one.
	nAnswers, nAccepted := 0, 0
	for _, p := range posted {
		var answerIDs []int64
		for range rand.IntN(3) + 1 {
			i := rand.IntN(len(clients))
			if i == p.author {
				continue
			}
			a, err := clients[i].CreateAnswer(ctx, model.AnswerInput{QuestionID: p.q.ID, Body: answers[rand.IntN(len(answers))]})
			if err != nil {
				logger.Warn("answer failed", "question", p.q.ID, "error", err)
				continue
			}
			answerIDs = append(answerIDs, a.ID)
			nAnswers++
		}
		if len(answerIDs) > 0 && rand.Float32() < 0.5 {
			if _, err := clients[p.author].AcceptAnswer(ctx, answerIDs[0]); err == nil {
				nAccepted++
			}
		}
	}

	// Vote on questions, mostly up.
	nVotes := 0
	for i, c := range clients {
		for _, p := range posted {
			if p.author == i || rand.Float32() < 0.4 {
				continue
			}
			action := model.ActionUpvote
			if rand.Float32() < 0.2 {
				action = model.ActionDownvote
			}
			if _, err := c.Vote(ctx, model.KindQuestion, p.q.ID, action); err != nil {
				logger.Warn("vote failed", "question", p.q.ID, "error", err)
				continue
			}
			nVotes++
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Users:     %d\n", len(users))
	fmt.Printf("Questions: %d\n", len(posted))
	fmt.Printf("Answers:   %d (%d accepted)\n", nAnswers, nAccepted)
	fmt.Printf("Votes:     %d\n", nVotes)
	fmt.Printf("Accounts use the password %q\n", *password)
}

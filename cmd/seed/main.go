// Command seed fills a development database with users, tags and messages
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"message-board/internal/auth"
	"message-board/internal/storage"

	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const seedPassword = "Passw0rd!"

func main() {
	users := flag.Int("users", 10, "number of regular users")
	tags := flag.Int("tags", 10, "number of tags")
	messages := flag.Int("messages", 100, "number of messages")
	days := flag.Int("days", 30, "messages are spread over this many past days")
	flag.Parse()

	if *users < 1 || *tags < 1 || *days < 1 {
		log.Fatal("users, tags and days must be positive")
	}

	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	dbCfg := storage.Config{}
	if err := env.Parse(&dbCfg); err != nil {
		sugar.Fatalf("Cannot parse database config: %v", err)
	}
	authCfg := auth.Config{}
	if err := env.Parse(&authCfg); err != nil {
		sugar.Fatalf("Cannot parse auth config: %v", err)
	}

	if err := storage.Migrate(dbCfg); err != nil {
		sugar.Fatalf("Cannot migrate database: %v", err)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, sugar, dbCfg)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}
	defer store.Close()

	s := seeder{store: store, cost: authCfg.HashCost, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	if _, err := s.user(ctx, "admin@example.com", "admin"); err != nil {
		sugar.Fatalf("Cannot seed admin: %v", err)
	}

	authors := make([]uuid.UUID, 0, *users)
	for i := 1; i <= *users; i++ {
		id, err := s.user(ctx, fmt.Sprintf("user%d@example.com", i), auth.DefaultRole)
		if err != nil {
			sugar.Fatalf("Cannot seed user: %v", err)
		}
		authors = append(authors, id)
	}

	tagIDs := make([]uuid.UUID, 0, *tags)
	for i := 1; i <= *tags; i++ {
		id, err := store.InsertTag(ctx, fmt.Sprintf("tag%d", i))
		if err != nil {
			sugar.Fatalf("Cannot seed tag: %v", err)
		}
		tagIDs = append(tagIDs, id)
	}

	n, err := store.ImportMessages(ctx, s.messages(*messages, authors, tagIDs, time.Duration(*days)*24*time.Hour))
	if err != nil {
		sugar.Fatalf("Cannot import messages: %v", err)
	}

	sugar.Infof("Seeded %d users, %d tags and %d messages, password is %q", len(authors)+1, len(tagIDs), n, seedPassword)
}

type seeder struct {
	store *storage.Store
	cost  int
	rnd   *rand.Rand
}

// user creates a user or returns the id of an existing one with the same email
func (s seeder) user(ctx context.Context, email, role string) (uuid.UUID, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, storage.ErrUserNotExist) {
		return uuid.Nil, err
	}

	r, err := s.store.RoleByName(ctx, role)
	if err != nil {
		return uuid.Nil, err
	}

	password, err := auth.HashPassword(seedPassword, s.cost)
	if err != nil {
		return uuid.Nil, err
	}

	return s.store.CreateUser(ctx, storage.NewUser{Email: email, Password: password, RoleID: r.ID})
}

func (s seeder) messages(n int, authors, tags []uuid.UUID, spread time.Duration) []storage.ImportedMessage {
	now := time.Now()
	out := make([]storage.ImportedMessage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, storage.ImportedMessage{
			Content:   fmt.Sprintf("Seeded message #%d", i+1),
			AuthorID:  authors[s.rnd.Intn(len(authors))],
			TagID:     tags[s.rnd.Intn(len(tags))],
			CreatedAt: now.Add(-time.Duration(s.rnd.Int63n(int64(spread)))),
		})
	}
	return out
}

// Command devtoken signs an access token for local testing with the
// configured JWT secret.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/service"
	"github.com/noah-isme/thesis-progress-api/pkg/config"
)

func main() {
	id := flag.Int64("id", 0, "user id")
	role := flag.String("role", string(models.RoleStudent), "STUDENT, SUPERVISOR, COMMITTEE or ADMIN")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("devtoken refuses to run with ENV=production")
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	token, expires, err := tokens.Issue(models.Actor{ID: *id, Role: models.UserRole(strings.ToUpper(*role))})
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires at %s", expires.Format("2006-01-02T15:04:05Z07:00"))
}

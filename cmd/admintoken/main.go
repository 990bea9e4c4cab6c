package main

import (
	"flag"
	"fmt"
	"time"

	"cardtable/backend/internal/config"
	"cardtable/backend/pkg/jwt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Prints a bearer token for the catalog admin routes, signed with JWT_SECRET.
// With -hash it prints a bcrypt hash for ADMIN_PASSWORD_HASH instead.
func main() {
	subject := flag.String("subject", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	hash := flag.String("hash", "", "print the bcrypt hash of this admin password and exit")
	flag.Parse()

	if *hash != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*hash), bcrypt.DefaultCost)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to hash password")
		}
		fmt.Println(string(hashed))
		return
	}

	config.LoadConfig()

	token, err := jwt.GenerateToken(*subject, jwt.RoleAdmin, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to generate token")
	}
	fmt.Println(token)
}

// adminctl provisions administrator accounts. Admins are created out of
// band only; the HTTP API never mutates them.
package main

import (
	"flag"
	"log"

	"github.com/spf13/viper"

	"github.com/openjsw/openposta/internal/auth"
	"github.com/openjsw/openposta/internal/config"
	"github.com/openjsw/openposta/internal/db"
	"github.com/openjsw/openposta/internal/storage"
)

func main() {
	var (
		cfgFile  = flag.String("config", "config.yaml", "Path to config file")
		username = flag.String("username", "", "Admin username")
		password = flag.String("password", "", "Admin password")
	)
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -username and -password are required")
	}
	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	store := storage.New(conn)
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	hash, err := auth.NewService(store).HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	adm, err := store.CreateAdmin(*username, hash)
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("admin %q created, id %s", adm.Username, adm.ID)
}

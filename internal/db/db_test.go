package db

import (
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/flatwithoutbrokerage/flatapi/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     6432,
		User:     "flat",
		Password: "p@ss/word",
		DBName:   "flat_db",
		UseSSL:   true,
	})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "postgres" || u.Host != "db.internal:6432" || u.Path != "/flat_db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if pw, _ := u.User.Password(); pw != "p@ss/word" {
		t.Fatalf("password not preserved: %q", pw)
	}
	if u.Query().Get("sslmode") != "require" {
		t.Fatalf("expected sslmode=require, got %q", dsn)
	}

	if !strings.Contains(DSN(config.DatabaseConfig{Host: "h", Port: 1}), "sslmode=disable") {
		t.Fatal("expected sslmode=disable without ssl")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got %d up and %d down", ups, downs)
	}
}

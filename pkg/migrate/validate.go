package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// ledgerRewriteRe matches statements that destroy or rewrite posted
	// ledger amounts. Down sections may drop tables; Up sections may not.
	ledgerRewriteRe = regexp.MustCompile(`(?is)\b(delete\s+from|truncate(\s+table)?)\s+wallet_transactions\b|\bupdate\s+wallet_transactions\s+set\b[^;]*\bamount_paise\b`)
)

// ValidateDir validates migration filenames, goose headers and that no Up
// section rewrites the wallet ledger.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}
		if err := validateMigration(name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func validateMigration(name, txt string) error {
	upIdx := strings.Index(txt, "-- +goose Up")
	if upIdx < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	downIdx := strings.Index(txt, "-- +goose Down")
	if downIdx < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if downIdx < upIdx {
		return fmt.Errorf("migration %q declares Down before Up", name)
	}
	if ledgerRewriteRe.MatchString(txt[upIdx:downIdx]) {
		return fmt.Errorf("migration %q rewrites wallet_transactions; the ledger is append-only", name)
	}
	return nil
}

// Package auth resolves the {db_url, db_token} pair a Database Handle
// needs to reach the remote pipeline service. It is the Go shape of
// the source's DbAuthStrategy trait (auth.rs): two strategies, picked
// by the GLOBE environment variable, modeled here as the teacher
// repo's tagged-interface pattern rather than inheritance (spec §9).
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Credentials is the resolved {db_url, db_token} pair (TursoConfig in
// the original source).
type Credentials struct {
	DBURL   string `json:"db_url"`
	DBToken string `json:"db_token"`
}

// Strategy resolves Credentials for a named database.
type Strategy interface {
	Resolve(ctx context.Context, dbName string, client *http.Client) (Credentials, error)
}

// EnvStrategy reads TURSO_DB_URL / TURSO_DB_TOKEN (spec §6).
type EnvStrategy struct{}

func (EnvStrategy) Resolve(_ context.Context, _ string, _ *http.Client) (Credentials, error) {
	url := os.Getenv("TURSO_DB_URL")
	token := os.Getenv("TURSO_DB_TOKEN")
	if url == "" || token == "" {
		return Credentials{}, fmt.Errorf("TURSO_DB_URL and TURSO_DB_TOKEN must both be set")
	}
	return Credentials{DBURL: url, DBToken: token}, nil
}

// DirectoryServiceStrategy calls GLOBE_DS_API's /db/auth endpoint
// (spec §6).
type DirectoryServiceStrategy struct {
	// BaseURL overrides GLOBE_DS_API; empty reads the env var lazily
	// on each Resolve call so tests can set it per-case.
	BaseURL string
}

func (s DirectoryServiceStrategy) Resolve(ctx context.Context, dbName string, client *http.Client) (Credentials, error) {
	base := s.BaseURL
	if base == "" {
		base = os.Getenv("GLOBE_DS_API")
	}
	if base == "" {
		return Credentials{}, fmt.Errorf("GLOBE_DS_API is not set")
	}

	body, err := json.Marshal(map[string]string{"db_name": dbName})
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/db/auth", strings.NewReader(string(body)))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to fetch auth credentials for database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credentials{}, fmt.Errorf("failed to get auth token: %s", resp.Status)
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode directory-service response: %w", err)
	}
	return creds, nil
}

// ResolveStrategy picks EnvStrategy or DirectoryServiceStrategy based
// on the GLOBE environment variable ("1" selects the directory
// service; anything else uses env vars) (spec §6).
func ResolveStrategy() Strategy {
	if os.Getenv("GLOBE") == "1" {
		return DirectoryServiceStrategy{}
	}
	return EnvStrategy{}
}

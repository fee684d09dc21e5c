package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretEntry struct {
	raw    string
	fields map[string]string
}

// SecretsClient reads Secrets Manager values once per process. JSON object
// secrets are decoded on first use and kept alongside the raw string.
type SecretsClient struct {
	api     secretsAPI
	mu      sync.Mutex
	entries map[string]*secretEntry
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return newSecretsClient(secretsmanager.NewFromConfig(cfg))
}

func newSecretsClient(api secretsAPI) *SecretsClient {
	return &SecretsClient{api: api, entries: make(map[string]*secretEntry)}
}

func (s *SecretsClient) entry(ctx context.Context, name string) (*secretEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		return e, nil
	}
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", name)
	}
	e := &secretEntry{raw: *out.SecretString}
	s.entries[name] = e
	return e, nil
}

func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	e, err := s.entry(ctx, name)
	if err != nil {
		return "", err
	}
	return e.raw, nil
}

// GetSecretMap reads a JSON object secret such as {"POSTGRES_USER": "..."}.
// The returned map is a copy.
func (s *SecretsClient) GetSecretMap(ctx context.Context, name string) (map[string]string, error) {
	e, err := s.entry(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.fields == nil {
		var m map[string]string
		if err := json.Unmarshal([]byte(e.raw), &m); err != nil {
			return nil, fmt.Errorf("secret %s is not a JSON object: %w", name, err)
		}
		e.fields = m
	}
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out, nil
}

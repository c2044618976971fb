package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

// Client wraps the HashiCorp Vault transit engine used for private notes
type Client struct {
	client       *api.Client
	transitMount string
	keyName      string
}

// Config holds Vault configuration
type Config struct {
	Address      string
	Token        string
	TransitMount string
	KeyName      string
}

// NewClient creates a new Vault client, mounts the transit engine when
// missing and makes sure the notes key exists
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	config := api.DefaultConfig()
	config.Address = cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	vaultClient := &Client{
		client:       client,
		transitMount: cfg.TransitMount,
		keyName:      cfg.KeyName,
	}

	if err := vaultClient.initTransitEngine(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize transit engine: %w", err)
	}

	if err := vaultClient.CreateKey(ctx, cfg.KeyName, "aes256-gcm96"); err != nil {
		return nil, err
	}

	return vaultClient, nil
}

// initTransitEngine enables the transit secrets engine if not already enabled
func (c *Client) initTransitEngine(ctx context.Context) error {
	mounts, err := c.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}

	mountPath := c.transitMount + "/"
	if _, exists := mounts[mountPath]; exists {
		return nil
	}

	err = c.client.Sys().MountWithContext(ctx, c.transitMount, &api.MountInput{
		Type:        "transit",
		Description: "Transit encryption for question notes",
	})
	if err != nil {
		return fmt.Errorf("failed to mount transit engine: %w", err)
	}

	return nil
}

// CreateKey creates a transit encryption key. Existing keys are left as is.
func (c *Client) CreateKey(ctx context.Context, keyName, keyType string) error {
	path := fmt.Sprintf("%s/keys/%s", c.transitMount, keyName)

	data := map[string]any{
		"type":       keyType,
		"exportable": false,
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, data); err != nil {
		return fmt.Errorf("failed to create key %s: %w", keyName, err)
	}

	return nil
}

// Encrypt encrypts plaintext with the notes key. aad is bound to the
// ciphertext and must be passed again on Decrypt.
func (c *Client) Encrypt(ctx context.Context, plaintext string, aad map[string]string) (string, error) {
	path := fmt.Sprintf("%s/encrypt/%s", c.transitMount, c.keyName)

	data := map[string]any{
		"plaintext": base64.StdEncoding.EncodeToString([]byte(plaintext)),
	}
	if len(aad) > 0 {
		data["associated_data"] = base64.StdEncoding.EncodeToString([]byte(encodeContext(aad)))
	}

	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return "", fmt.Errorf("invalid ciphertext response")
	}

	return ciphertext, nil
}

// Decrypt reverses Encrypt
func (c *Client) Decrypt(ctx context.Context, ciphertext string, aad map[string]string) (string, error) {
	path := fmt.Sprintf("%s/decrypt/%s", c.transitMount, c.keyName)

	data := map[string]any{
		"ciphertext": ciphertext,
	}
	if len(aad) > 0 {
		data["associated_data"] = base64.StdEncoding.EncodeToString([]byte(encodeContext(aad)))
	}

	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return "", fmt.Errorf("invalid plaintext response")
	}

	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode plaintext: %w", err)
	}

	return string(plaintext), nil
}

// Health checks Vault health status
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// encodeContext renders the map in key order so the same map always
// produces the same associated data
func encodeContext(ctx map[string]string) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, ctx[k])
	}
	return b.String()
}

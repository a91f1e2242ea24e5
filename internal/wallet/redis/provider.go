package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agentwallet/internal/wallet"
	platformredis "agentwallet/internal/platform/redis"
)

// Provider connects to the Redis server named by storage_config.url. When
// Client is set it is shared by every wallet instead.
type Provider struct {
	Client *redis.Client
	Pool   platformredis.Config
}

type Option func(*Provider)

// WithClient shares one client across wallets; Storage.Close leaves it open.
func WithClient(client *redis.Client) Option {
	return func(p *Provider) {
		p.Client = client
	}
}

// WithPool sets connection pool settings for per-wallet clients.
func WithPool(cfg platformredis.Config) Option {
	return func(p *Provider) {
		p.Pool = cfg
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{Pool: platformredis.DefaultConfig()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) client(ctx context.Context, cfg wallet.Config, creds wallet.Credentials) (*redis.Client, bool, error) {
	if p.Client != nil {
		return p.Client, false, nil
	}
	url, err := wallet.ConnectionURL(cfg, creds)
	if err != nil {
		return nil, false, err
	}
	pool := p.Pool
	pool.URL = url
	c, err := platformredis.New(ctx, pool)
	if err != nil {
		return nil, false, err
	}
	return c.Client, true, nil
}

func (p *Provider) Create(ctx context.Context, cfg wallet.Config, creds wallet.Credentials, metadata []byte) error {
	client, owned, err := p.client(ctx, cfg, creds)
	if err != nil {
		return err
	}
	if owned {
		defer client.Close()
	}
	created, err := client.SetNX(ctx, keys{walletID: cfg.ID}.meta(), metadata, 0).Result()
	if err != nil {
		return fmt.Errorf("store wallet metadata: %w", err)
	}
	if !created {
		return wallet.ErrAlreadyExists
	}
	return nil
}

func (p *Provider) Open(ctx context.Context, cfg wallet.Config, creds wallet.Credentials) (wallet.Storage, error) {
	client, owned, err := p.client(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}
	k := keys{walletID: cfg.ID}
	n, err := client.Exists(ctx, k.meta()).Result()
	if err == nil && n == 0 {
		err = wallet.ErrWalletNotFound
	}
	if err != nil {
		if owned {
			_ = client.Close()
		}
		return nil, err
	}
	return &Storage{client: client, keys: k, owned: owned}, nil
}

func (p *Provider) Delete(ctx context.Context, cfg wallet.Config, creds wallet.Credentials) error {
	client, owned, err := p.client(ctx, cfg, creds)
	if err != nil {
		return err
	}
	if owned {
		defer client.Close()
	}
	k := keys{walletID: cfg.ID}
	n, err := client.Exists(ctx, k.meta()).Result()
	if err != nil {
		return fmt.Errorf("check wallet: %w", err)
	}
	if n == 0 {
		return wallet.ErrWalletNotFound
	}
	types, err := client.SMembers(ctx, k.types()).Result()
	if err != nil {
		return fmt.Errorf("list wallet types: %w", err)
	}
	del := []string{k.meta(), k.types()}
	for _, t := range types {
		del = append(del, k.items(t))
	}
	if err := client.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("delete wallet keys: %w", err)
	}
	return nil
}

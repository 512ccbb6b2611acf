// Package media resolves the gym's media assets (product catalog, gym photo) to URLs that
// WhatsApp can fetch.
//
// Assets live either in an S3 bucket, served through short-lived presigned URLs, or behind
// a public base URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Asset keys understood by the catalog.
const (
	KeyCatalog  = "catalog"
	KeyGymPhoto = "gym_photo"
)

const (
	// DefaultExpiry is the lifetime of a presigned URL
	DefaultExpiry = time.Hour
)

var (
	ErrUnknownAsset  = errors.New("unknown media asset")
	ErrNotConfigured = errors.New("media: neither bucket nor base URL configured")
)

// DefaultObjects maps asset keys to object names.
var DefaultObjects = map[string]string{
	KeyCatalog:  "catalogo-gymbro.pdf",
	KeyGymPhoto: "gymbro.jpg",
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Opts holds configuration for the media catalog.
type Opts struct {
	Bucket  string
	Region  string
	Prefix  string
	BaseURL string
	Expiry  time.Duration
	Objects map[string]string
}

// Option configures the media catalog.
type Option func(*Opts)

// WithBucket serves assets from an S3 bucket.
func WithBucket(bucket, region string) Option {
	return func(o *Opts) {
		o.Bucket = bucket
		o.Region = region
	}
}

// WithPrefix sets the object key prefix inside the bucket.
func WithPrefix(prefix string) Option {
	return func(o *Opts) { o.Prefix = strings.Trim(prefix, "/") }
}

// WithBaseURL serves assets from a public URL prefix.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = strings.TrimRight(u, "/") }
}

// WithExpiry sets the presigned URL lifetime.
func WithExpiry(d time.Duration) Option {
	return func(o *Opts) { o.Expiry = d }
}

// WithObject maps an asset key to an object name.
func WithObject(key, object string) Option {
	return func(o *Opts) { o.Objects[key] = object }
}

type cachedURL struct {
	url     string
	renewAt time.Time
}

// Catalog resolves asset keys to URLs.
type Catalog struct {
	cfg       Opts
	presigner presigner
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cachedURL
}

// NewCatalog builds a catalog. With a bucket configured, AWS credentials are loaded from
// the default chain.
func NewCatalog(ctx context.Context, opts ...Option) (*Catalog, error) {
	cfg := Opts{Expiry: DefaultExpiry, Objects: make(map[string]string, len(DefaultObjects))}
	for k, v := range DefaultObjects {
		cfg.Objects[k] = v
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Catalog{cfg: cfg, now: time.Now, cache: make(map[string]cachedURL)}
	switch {
	case cfg.Bucket != "":
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("media: load AWS config: %w", err)
		}
		c.presigner = s3.NewPresignClient(s3.NewFromConfig(awsCfg))
		slog.Debug("media.NewCatalog: serving assets from S3", "bucket", cfg.Bucket, "region", awsCfg.Region)
	case cfg.BaseURL != "":
		slog.Debug("media.NewCatalog: serving assets from base URL", "base_url", cfg.BaseURL)
	default:
		return nil, ErrNotConfigured
	}
	return c, nil
}

func (c *Catalog) objectKey(object string) string {
	if c.cfg.Prefix == "" {
		return object
	}
	return c.cfg.Prefix + "/" + object
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// URL returns a fetchable URL for the asset key. Presigned URLs are reused until half
// their lifetime has passed.
func (c *Catalog) URL(ctx context.Context, key string) (string, error) {
	object, ok := c.cfg.Objects[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, key)
	}
	if c.presigner == nil {
		return c.cfg.BaseURL + "/" + escapePath(c.objectKey(object)), nil
	}

	now := c.now()
	c.mu.Lock()
	if cached, ok := c.cache[key]; ok && now.Before(cached.renewAt) {
		c.mu.Unlock()
		return cached.url, nil
	}
	c.mu.Unlock()

	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.objectKey(object)),
	}, s3.WithPresignExpires(c.cfg.Expiry))
	if err != nil {
		slog.Error("Catalog.URL: presign failed", "key", key, "error", err)
		return "", fmt.Errorf("media: presign %s: %w", key, err)
	}

	c.mu.Lock()
	c.cache[key] = cachedURL{url: req.URL, renewAt: now.Add(c.cfg.Expiry / 2)}
	c.mu.Unlock()
	slog.Debug("Catalog.URL: presigned asset", "key", key, "expiry", c.cfg.Expiry)
	return req.URL, nil
}

package media

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	calls int
	keys  []string
	err   error
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, *params.Key)
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + *params.Bucket + ".s3.amazonaws.com/" + *params.Key + "?sig=x",
		Method: http.MethodGet,
	}, nil
}

func TestNewCatalogRequiresSource(t *testing.T) {
	_, err := NewCatalog(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBaseURLCatalog(t *testing.T) {
	c, err := NewCatalog(context.Background(),
		WithBaseURL("https://cdn.gymbro.co/assets/"),
		WithPrefix("/media/"),
		WithObject(KeyGymPhoto, "sede principal.jpg"),
	)
	require.NoError(t, err)

	u, err := c.URL(context.Background(), KeyCatalog)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.gymbro.co/assets/media/catalogo-gymbro.pdf", u)

	u, err = c.URL(context.Background(), KeyGymPhoto)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.gymbro.co/assets/media/sede%20principal.jpg", u)

	_, err = c.URL(context.Background(), "menu")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestPresignedURLsAreCached(t *testing.T) {
	fake := &fakePresigner{}
	now := time.Date(2025, 4, 12, 9, 0, 0, 0, time.UTC)
	c := &Catalog{
		cfg:       Opts{Bucket: "gymbro-media", Prefix: "wa", Expiry: time.Hour, Objects: DefaultObjects},
		presigner: fake,
		now:       func() time.Time { return now },
		cache:     map[string]cachedURL{},
	}

	first, err := c.URL(context.Background(), KeyCatalog)
	require.NoError(t, err)
	assert.Equal(t, "https://gymbro-media.s3.amazonaws.com/wa/catalogo-gymbro.pdf?sig=x", first)

	now = now.Add(29 * time.Minute)
	again, err := c.URL(context.Background(), KeyCatalog)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, fake.calls)

	now = now.Add(2 * time.Minute)
	_, err = c.URL(context.Background(), KeyCatalog)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls, "expected a fresh presign after half the expiry")
	assert.Equal(t, []string{"wa/catalogo-gymbro.pdf", "wa/catalogo-gymbro.pdf"}, fake.keys)
}

func TestPresignError(t *testing.T) {
	c := &Catalog{
		cfg:       Opts{Bucket: "b", Expiry: time.Hour, Objects: DefaultObjects},
		presigner: &fakePresigner{err: errors.New("no credentials")},
		now:       time.Now,
		cache:     map[string]cachedURL{},
	}
	_, err := c.URL(context.Background(), KeyGymPhoto)
	assert.Error(t, err)
}

func TestS3CatalogPresignsOffline(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	c, err := NewCatalog(context.Background(), WithBucket("gymbro-media", "us-east-1"), WithExpiry(15*time.Minute))
	require.NoError(t, err)

	u, err := c.URL(context.Background(), KeyCatalog)
	require.NoError(t, err)
	assert.Contains(t, u, "gymbro-media")
	assert.Contains(t, u, "catalogo-gymbro.pdf")
	assert.Contains(t, u, "X-Amz-Expires=900")
	assert.Contains(t, u, "X-Amz-Signature=")
}

package webhookarchive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/DocuChat/internal/pkg/env"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestObjectKey(t *testing.T) {
	cfg := &Config{Prefix: "webhooks/stripe"}
	at := time.Date(2026, 10, 16, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	assert.Equal(t, "webhooks/stripe/2026/10/16/checkout.session.completed/evt_1.json",
		cfg.ObjectKey("evt_1", "checkout.session.completed", at))
	assert.Equal(t, "webhooks/stripe/2026/10/16/unknown/evt_a_b.json",
		cfg.ObjectKey("evt/a b", "", at))

	cfg.Prefix = ""
	assert.Equal(t, "2026/10/16/x/evt.json", cfg.ObjectKey("evt", "x", at))
}

func TestArchiveWritesPayload(t *testing.T) {
	putter := &fakePutter{}
	a := NewArchiverWithClient(putter, &Config{BucketName: "billing-archive", Prefix: "webhooks/stripe"})
	a.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	err := a.Archive(context.Background(), "evt_9", "customer.subscription.deleted", []byte(`{"id":"evt_9"}`))
	require.NoError(t, err)

	require.NotNil(t, putter.input)
	assert.Equal(t, "billing-archive", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "webhooks/stripe/2026/01/02/customer.subscription.deleted/evt_9.json", aws.ToString(putter.input.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))
	assert.Equal(t, `{"id":"evt_9"}`, string(putter.body))
}

func TestArchivePropagatesErrors(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	a := NewArchiverWithClient(putter, &Config{BucketName: "b"})

	err := a.Archive(context.Background(), "evt_1", "x", []byte(`{}`))
	assert.ErrorContains(t, err, "access denied")
}

func TestLoadConfigValidatesWhenEnabled(t *testing.T) {
	env.Env = map[string]string{"S3_ARCHIVE_ENABLED": "true", "S3_ACCESS_KEY_ID": "key"}
	t.Cleanup(func() { env.Env = nil })

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "S3_SECRET_ACCESS_KEY")

	env.Env["S3_SECRET_ACCESS_KEY"] = "secret"
	env.Env["S3_BUCKET_NAME"] = "archive"
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, "webhooks/stripe", cfg.Prefix)
}

func TestLoadConfigDisabledByDefault(t *testing.T) {
	env.Env = map[string]string{}
	t.Cleanup(func() { env.Env = nil })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled())
}

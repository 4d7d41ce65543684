// Package media turns a command-line media target into something the
// engine can open.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"github.com/njyeung/vlayer/internal/config"
	"github.com/njyeung/vlayer/render"
)

// ErrCredentials is returned when an s3:// target is given without AWS
// credentials in the environment.
var ErrCredentials = errors.New("missing one or more required environment variables: AWS_DEFAULT_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY")

// Getter fetches an object from a bucket.
type Getter interface {
	GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Resolver resolves media targets. Remote objects are downloaded into
// CacheDir.
type Resolver struct {
	CacheDir string
	AWS      config.AWS
	Log      *zap.Logger

	// NewGetter returns the client used for s3:// targets. The default
	// builds an S3 client from AWS.
	NewGetter func() (Getter, error)
}

// Resolve returns the path or URL the engine should load for target.
// Local paths must exist; http(s) URLs are passed through; s3://bucket/key
// objects are downloaded once and served from the cache.
func (r *Resolver) Resolve(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", render.ErrMissingMedia
	}
	switch {
	case strings.HasPrefix(target, "s3://"):
		return r.fetchS3(ctx, target)
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return target, nil
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("media %s: %w", target, err)
	}
	return target, nil
}

func (r *Resolver) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Resolver) getter() (Getter, error) {
	if r.NewGetter != nil {
		return r.NewGetter()
	}
	if !r.AWS.Complete() {
		return nil, ErrCredentials
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(r.AWS.Region),
		Credentials: credentials.NewStaticCredentials(r.AWS.AccessKey, r.AWS.SecretKey, ""),
	})
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

// ParseS3 splits an s3://bucket/key URL.
func ParseS3(target string) (bucket, key string, err error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid s3 object %q", target)
	}
	return u.Host, key, nil
}

// CachePath is where the object bucket/key is stored under dir. Objects
// whose path would leave the bucket's directory are rejected.
func CachePath(dir, bucket, key string) (string, error) {
	root := filepath.Join(dir, bucket)
	p := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(filepath.Join(dir), root)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid s3 bucket %q", bucket)
	}
	if rel, err = filepath.Rel(root, p); err != nil || !filepath.IsLocal(rel) || rel == "." {
		return "", fmt.Errorf("invalid s3 key %q", key)
	}
	return p, nil
}

func (r *Resolver) fetchS3(ctx context.Context, target string) (string, error) {
	bucket, key, err := ParseS3(target)
	if err != nil {
		return "", err
	}
	local, err := CachePath(r.CacheDir, bucket, key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(local); err == nil {
		r.log().Debug("media cached", zap.String("path", local))
		return local, nil
	}

	client, err := r.getter()
	if err != nil {
		return "", err
	}
	r.log().Info("downloading", zap.String("bucket", bucket), zap.String("key", key))
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("download %s: %w", target, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(local), ".download-*")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), local)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", target, err)
	}
	r.log().Info("downloaded", zap.String("path", local), zap.Int64("bytes", n))
	return local, nil
}

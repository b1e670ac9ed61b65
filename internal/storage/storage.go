// Package storage keeps original receipt files on local disk or in an
// S3-compatible bucket and resolves storage references back to local files
// for OCR.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
)

const (
	s3Scheme   = "s3://"
	fileScheme = "file://"
)

// Store persists receipt bytes and fetches them back by reference.
type Store interface {
	// Put writes data under key and returns the storage reference.
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Fetch makes ref available as a local file. cleanup is never nil.
	Fetch(ctx context.Context, ref string) (path string, cleanup func(), err error)
}

// Router sends s3:// references to the bucket and everything else to local
// disk. New files go to S3 when it is configured.
type Router struct {
	local *Local
	s3    *S3Store
}

func NewRouter(local *Local, s3 *S3Store) *Router {
	return &Router{local: local, s3: s3}
}

func (r *Router) Put(ctx context.Context, key string, data []byte) (string, error) {
	if r.s3 != nil {
		return r.s3.Put(ctx, key, data)
	}
	if r.local == nil {
		return "", fmt.Errorf("%w: no storage backend configured", common.ErrServiceUnavailable)
	}
	return r.local.Put(ctx, key, data)
}

func (r *Router) Fetch(ctx context.Context, ref string) (string, func(), error) {
	if strings.HasPrefix(ref, s3Scheme) {
		if r.s3 == nil {
			return "", noop, fmt.Errorf("%w: s3 reference %q but s3 is not configured", common.ErrInvalidInput, ref)
		}
		return r.s3.Fetch(ctx, ref)
	}
	if r.local == nil {
		return "", noop, fmt.Errorf("%w: no local storage configured", common.ErrServiceUnavailable)
	}
	return r.local.Fetch(ctx, ref)
}

func noop() {}

// ParseS3Ref splits "s3://bucket/key".
func ParseS3Ref(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: not an s3 reference: %q", common.ErrInvalidInput, ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed s3 reference: %q", common.ErrInvalidInput, ref)
	}
	return bucket, key, nil
}

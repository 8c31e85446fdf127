package main

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/rann/blobstore"
	s3store "github.com/hupe1980/rann/blobstore/s3"
)

// openStore resolves a checkpoint location. Plain paths become local
// directories; s3://bucket/prefix locations go through the default AWS
// credential chain.
func openStore(ctx context.Context, location string) (blobstore.Store, error) {
	bucket, prefix, ok := parseS3URI(location)
	if !ok {
		return blobstore.NewLocalStore(location), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return s3store.NewStore(awss3.NewFromConfig(cfg), bucket, prefix), nil
}

func parseS3URI(location string) (bucket, prefix string, ok bool) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok || rest == "" {
		return "", "", false
	}

	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}

	return bucket, prefix, true
}

package provider

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ensure interfaces are implemented
var (
	_ Provider   = (*S3Provider)(nil)
	_ TreeWalker = (*S3Provider)(nil)
)

type s3FileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (f *s3FileInfo) Name() string       { return f.name }
func (f *s3FileInfo) Size() int64        { return f.size }
func (f *s3FileInfo) IsDir() bool        { return f.isDir }
func (f *s3FileInfo) ModTime() time.Time { return f.modTime }

// S3Provider exposes an S3 bucket/prefix as a warmable tree. Reading every
// object pulls its blocks through whatever cache tier fronts the bucket
// (e.g. a gateway or mount-point cache).
type S3Provider struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Provider creates a new S3Provider.
// bucket is the S3 bucket name.
func NewS3Provider(ctx context.Context, bucket string, prefix string) (*S3Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &S3Provider{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// buildKey constructs the full S3 key based on the provider's prefix
func (p *S3Provider) buildKey(subPath string) string {
	subPath = strings.TrimPrefix(subPath, "/")
	if p.prefix == "" {
		return subPath
	}
	// Avoid double slashes
	key := path.Join(p.prefix, subPath)
	return strings.TrimPrefix(key, "/")
}

// Stat returns the FileInfo for the given path.
func (p *S3Provider) Stat(ctx context.Context, pth string) (FileInfo, error) {
	key := p.buildKey(pth)

	// exact match
	headOut, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})

	if err == nil {
		var modTime time.Time
		if headOut.LastModified != nil {
			modTime = *headOut.LastModified
		}
		var size int64
		if headOut.ContentLength != nil {
			size = *headOut.ContentLength
		}

		return &s3FileInfo{
			name:    path.Base(key),
			size:    size,
			isDir:   strings.HasSuffix(key, "/"),
			modTime: modTime,
		}, nil
	}

	// maybe a directory? Let's check prefix
	dirPrefix := key + "/"
	if key == "" {
		dirPrefix = ""
	}

	listOut, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(dirPrefix),
		MaxKeys: aws.Int32(1),
	})

	if err != nil {
		return nil, fmt.Errorf("stat failed for %q: %w", pth, err)
	}

	if len(listOut.Contents) > 0 || len(listOut.CommonPrefixes) > 0 {
		return &s3FileInfo{
			name:  path.Base(key),
			isDir: true,
		}, nil
	}

	return nil, fmt.Errorf("file not found: %s", pth)
}

// List returns the contents of the given directory.
func (p *S3Provider) List(ctx context.Context, pth string) ([]FileInfo, error) {
	dirPrefix := p.buildKey(pth)
	if dirPrefix != "" && !strings.HasSuffix(dirPrefix, "/") {
		dirPrefix += "/"
	}

	var infos []FileInfo
	var continuationToken *string

	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(dirPrefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", pth, err)
		}

		// Add common prefixes as directories
		for _, cp := range out.CommonPrefixes {
			name := strings.TrimPrefix(*cp.Prefix, dirPrefix)
			name = strings.TrimSuffix(name, "/")
			infos = append(infos, &s3FileInfo{
				name:  name,
				isDir: true,
			})
		}

		// Add objects as files (or explicit directories if they end in /)
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(*obj.Key, dirPrefix)
			if name == "" { // sometimes the dir itself is in the results
				continue
			}
			isDir := strings.HasSuffix(name, "/")
			if isDir {
				name = strings.TrimSuffix(name, "/")
			}

			var modTime time.Time
			if obj.LastModified != nil {
				modTime = *obj.LastModified
			}
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}

			infos = append(infos, &s3FileInfo{
				name:    name,
				size:    size,
				isDir:   isDir,
				modTime: modTime,
			})
		}

		if out.IsTruncated != nil && *out.IsTruncated {
			continuationToken = out.NextContinuationToken
		} else {
			break
		}
	}

	return infos, nil
}

// OpenRead opens an object for streaming reads.
func (p *S3Provider) OpenRead(ctx context.Context, pth string) (io.ReadCloser, error) {
	key := p.buildKey(pth)
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open read %q: %w", pth, err)
	}
	return out.Body, nil
}

// WalkTree enumerates every object under root with a flat (no delimiter)
// paged listing, which is far cheaper than a List call per pseudo-directory.
// Keys ending in "/" are directory placeholders and are skipped.
func (p *S3Provider) WalkTree(ctx context.Context, root string, fn WalkFunc) error {
	dirPrefix := p.buildKey(root)
	if dirPrefix != "" && !strings.HasSuffix(dirPrefix, "/") {
		dirPrefix += "/"
	}

	var continuationToken *string

	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(dirPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("failed to list %q: %w", root, err)
		}

		for _, obj := range out.Contents {
			if strings.HasSuffix(*obj.Key, "/") {
				continue
			}

			// Paths handed to fn stay relative to the provider prefix so
			// OpenRead accepts them unchanged.
			rel := strings.TrimPrefix(*obj.Key, p.buildKey(""))
			rel = strings.TrimPrefix(rel, "/")

			var modTime time.Time
			if obj.LastModified != nil {
				modTime = *obj.LastModified
			}
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}

			info := &s3FileInfo{
				name:    path.Base(*obj.Key),
				size:    size,
				modTime: modTime,
			}

			if err := fn(rel, info, nil); err != nil {
				return err
			}
		}

		if out.IsTruncated != nil && *out.IsTruncated {
			continuationToken = out.NextContinuationToken
		} else {
			break
		}
	}

	return nil
}

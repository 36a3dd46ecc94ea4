package statichandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store is the optional S3-backed FileStore, for operators who want file
// endpoints backed by object storage instead of local disk.
type S3Store struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

func (s *S3Store) key(endpointName, id string) string {
	return path.Join(s.Prefix, endpointName, id)
}

func (s *S3Store) metaKey(endpointName, id string) string {
	return s.key(endpointName, id) + ".meta"
}

func (s *S3Store) Put(ctx context.Context, endpointName, id string, meta FileMeta, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("statichandler: read upload: %w", err)
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(endpointName, id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("statichandler: s3 put object: %w", err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("statichandler: marshal meta: %w", err)
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.metaKey(endpointName, id)),
		Body:   bytes.NewReader(metaBytes),
	})
	if err != nil {
		return fmt.Errorf("statichandler: s3 put meta: %w", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, endpointName, id string) (io.ReadCloser, FileMeta, error) {
	var meta FileMeta
	metaOut, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.metaKey(endpointName, id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, meta, ErrNotFound
		}
		return nil, meta, fmt.Errorf("statichandler: s3 get meta: %w", err)
	}
	defer metaOut.Body.Close()
	if err := json.NewDecoder(metaOut.Body).Decode(&meta); err != nil {
		return nil, meta, fmt.Errorf("statichandler: corrupt meta for %s: %w", id, err)
	}

	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(endpointName, id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, meta, ErrNotFound
		}
		return nil, meta, fmt.Errorf("statichandler: s3 get object: %w", err)
	}
	return out.Body, meta, nil
}

func (s *S3Store) Delete(ctx context.Context, endpointName, id string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.Bucket), Key: aws.String(s.key(endpointName, id))})
	if err != nil {
		return fmt.Errorf("statichandler: s3 delete object: %w", err)
	}
	_, err = s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.Bucket), Key: aws.String(s.metaKey(endpointName, id))})
	if err != nil {
		return fmt.Errorf("statichandler: s3 delete meta: %w", err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, endpointName string) ([]FileMeta, error) {
	prefix := path.Join(s.Prefix, endpointName) + "/"
	var metas []FileMeta
	paginator := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("statichandler: s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if len(key) < 5 || key[len(key)-5:] != ".meta" {
				continue
			}
			out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.Bucket), Key: obj.Key})
			if err != nil {
				continue
			}
			var m FileMeta
			if json.NewDecoder(out.Body).Decode(&m) == nil {
				metas = append(metas, m)
			}
			out.Body.Close()
		}
	}
	return metas, nil
}

func (s *S3Store) Exists(ctx context.Context, endpointName, id string) (bool, error) {
	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.Bucket), Key: aws.String(s.key(endpointName, id))})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

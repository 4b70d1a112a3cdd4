package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploaderStub struct {
	keys []string
	body []byte
	err  error
}

func (u *uploaderStub) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.keys = append(u.keys, aws.ToString(input.Key))
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = data
	return &manager.UploadOutput{}, nil
}

type objectsStub struct {
	deleted []string
}

func (o *objectsStub) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	o.deleted = append(o.deleted, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageSaveAndDelete(t *testing.T) {
	up := &uploaderStub{}
	objs := &objectsStub{}
	store := &S3Storage{uploader: up, objects: objs, bucket: "media", baseURL: "https://cdn.example.com"}
	ctx := context.Background()

	location, err := store.Save(ctx, "/avatars/user-1/me.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/user-1/me.png", location)
	assert.Equal(t, []string{"avatars/user-1/me.png"}, up.keys)
	assert.Equal(t, "png-bytes", string(up.body))

	require.NoError(t, store.Delete(ctx, location))
	require.NoError(t, store.Delete(ctx, "covers/user-1/bg.jpg"))
	assert.Equal(t, []string{"avatars/user-1/me.png", "covers/user-1/bg.jpg"}, objs.deleted)
}

func TestS3StorageRejectsEmptyKeys(t *testing.T) {
	store := &S3Storage{uploader: &uploaderStub{}, objects: &objectsStub{}, bucket: "media"}

	_, err := store.Save(context.Background(), "/", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrEmptyKey))
	assert.True(t, errors.Is(store.Delete(context.Background(), ""), ErrEmptyKey))
}

func TestS3StorageUploadFailure(t *testing.T) {
	store := &S3Storage{uploader: &uploaderStub{err: errors.New("access denied")}, objects: &objectsStub{}, bucket: "media"}

	_, err := store.Save(context.Background(), "avatars/a.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avatars/a.png")
}

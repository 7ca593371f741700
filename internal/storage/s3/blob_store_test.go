package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.body = string(b)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	fake := &fakePutter{}
	store, err := New(fake, Config{Bucket: "media"}, nil)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "publications/pdfs/a.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "s3://media/publications/pdfs/a.pdf", uri)
	require.Equal(t, "media", aws.ToString(fake.input.Bucket))
	require.Equal(t, "publications/pdfs/a.pdf", aws.ToString(fake.input.Key))
	require.Equal(t, "application/pdf", aws.ToString(fake.input.ContentType))
	require.Equal(t, "%PDF", fake.body)
}

func TestPutObjectWithoutContentType(t *testing.T) {
	t.Parallel()

	fake := &fakePutter{}
	store, err := New(fake, Config{Bucket: "media"}, nil)
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "covers/x", "", strings.NewReader("img"))
	require.NoError(t, err)
	require.Nil(t, fake.input.ContentType)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	store, err := New(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "media"}, nil)
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "covers/x.jpg", "image/jpeg", strings.NewReader("img"))
	require.ErrorContains(t, err, "access denied")

	_, err = store.PutObject(context.Background(), " ", "image/jpeg", strings.NewReader("img"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "media"}, nil)
	require.Error(t, err)
	_, err = New(&fakePutter{}, Config{}, nil)
	require.Error(t, err)
}

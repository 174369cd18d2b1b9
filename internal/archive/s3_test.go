package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveWritesJSONLines(t *testing.T) {
	client := &fakeS3{}
	a := NewS3WithClient(client, "news-archive", "swept")
	a.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 5, 0, time.UTC) }

	err := a.Archive(context.Background(), []storage.Article{
		{ID: "a1", Title: "first", ViewCount: 3},
		{ID: "a2", Title: "second", ViewCount: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "news-archive", client.bucket)
	assert.Equal(t, "swept/2026/10/19/20261019T000005Z.jsonl", client.key)

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(client.body))
	for sc.Scan() {
		var got storage.Article
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		ids = append(ids, got.ID)
	}
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestArchiveEmptyIsNoop(t *testing.T) {
	client := &fakeS3{err: errors.New("should not be called")}
	assert.NoError(t, NewS3WithClient(client, "b", "").Archive(context.Background(), nil))
}

func TestArchivePropagatesPutFailure(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	err := NewS3WithClient(client, "b", "p").Archive(context.Background(), []storage.Article{{ID: "x"}})
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), Config{})
	assert.Error(t, err)
}

package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge.evalgo.org/bldrerr"
)

// mockS3Client is a narrow mock of s3Client, modeled on the teacher's
// storage.MockS3Client but scoped to the three calls Mirror makes.
type mockS3Client struct {
	objects map[string][]byte
	err     error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*params.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.objects[*params.Key]; !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func newTestMirror(client *mockS3Client) *Mirror {
	return &Mirror{client: client, bucket: "forge-test"}
}

func TestKeyLayoutMatchesLocalCASShards(t *testing.T) {
	assert.Equal(t, "blobs/ab/cdef", key("abcdef"))
	assert.Equal(t, "blobs/_short/a", key("a"))
}

func TestPushThenPullRoundTrips(t *testing.T) {
	client := newMockS3Client()
	m := newTestMirror(client)

	err := m.Push(context.Background(), "deadbeef", []byte("payload"))
	require.NoError(t, err)

	got, err := m.Pull(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestPullMissingBlobReturnsNetworkError(t *testing.T) {
	client := newMockS3Client()
	m := newTestMirror(client)

	_, err := m.Pull(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, bldrerr.KindNetwork, bldrerr.KindOf(err))
}

func TestHasReflectsPresence(t *testing.T) {
	client := newMockS3Client()
	m := newTestMirror(client)

	assert.False(t, m.Has(context.Background(), "deadbeef"))

	require.NoError(t, m.Push(context.Background(), "deadbeef", []byte("x")))
	assert.True(t, m.Has(context.Background(), "deadbeef"))
}

func TestPushPropagatesClientError(t *testing.T) {
	client := newMockS3Client()
	client.err = errors.New("connection refused")
	m := newTestMirror(client)

	err := m.Push(context.Background(), "deadbeef", []byte("x"))
	require.Error(t, err)
}

package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosh/pkg/credentials"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
	lastCT  string
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.lastCT = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestLoadMissingObject(t *testing.T) {
	p, err := New(newFakeS3(), Config{Bucket: "b"})
	require.NoError(t, err)

	creds, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	p, err := New(fake, Config{Bucket: "b", Key: "custom/users.json"})
	require.NoError(t, err)

	in := map[string]*credentials.Credential{"alice": {Username: "alice", SecretDigest: "d"}}
	require.NoError(t, p.Save(ctx, in))
	assert.Contains(t, fake.objects, "b/custom/users.json")
	assert.Equal(t, "application/json", fake.lastCT)

	out, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	p, err := New(fake, Config{Bucket: "b"})
	require.NoError(t, err)

	fake.getErr = errors.New("access denied")
	_, err = p.Load(ctx)
	assert.ErrorContains(t, err, "access denied")

	fake.putErr = errors.New("slow down")
	assert.ErrorContains(t, p.Save(ctx, nil), "slow down")
}

func TestDefaultKeyAndBucketRequired(t *testing.T) {
	p, err := New(newFakeS3(), Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultKey, p.key)

	_, err = New(newFakeS3(), Config{})
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(errors.New("api error NoSuchKey: gone")))
	assert.False(t, isNotFound(errors.New("timeout")))
}

package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	names map[string]string
	err   error
	calls int
}

func (f *fakeProfiles) DisplayName(_ context.Context, userID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.names[userID], nil
}

type fakeDirectory struct {
	names map[string]string
	err   error
	calls int
}

func (f *fakeDirectory) PreferredName(_ context.Context, userID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.names[userID], nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestPreferredName_DirectoryWinsOverProfile(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{"U1": "jamie.k"}}
	directory := &fakeDirectory{names: map[string]string{"U1": "Jamie"}}
	r := NewResolver(profiles, directory, nopLogger{})

	name, err := r.PreferredName(context.Background(), "U1")
	require.NoError(t, err)

	assert.Equal(t, "Jamie", name)
	assert.Equal(t, 0, profiles.calls, "profile lookup is skipped when the directory has a record")
}

func TestPreferredName_ProfileFallback(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{"U1": "jamie.k"}}
	directory := &fakeDirectory{names: map[string]string{}}
	r := NewResolver(profiles, directory, nopLogger{})

	name, err := r.PreferredName(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "jamie.k", name)
}

func TestPreferredName_NoDirectoryConfigured(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{"U1": "jamie.k"}}
	r := NewResolver(profiles, nil, nopLogger{})

	name, err := r.PreferredName(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "jamie.k", name)
}

func TestPreferredName_DirectoryErrorFallsBackToProfile(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{"U1": "jamie.k"}}
	directory := &fakeDirectory{err: errors.New("fetch failed")}
	r := NewResolver(profiles, directory, nopLogger{})

	name, err := r.PreferredName(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "jamie.k", name)
}

func TestPreferredName_CachesNonEmptyResults(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{"U1": "jamie.k"}}
	r := NewResolver(profiles, nil, nopLogger{})
	ctx := context.Background()

	_, err := r.PreferredName(ctx, "U1")
	require.NoError(t, err)
	_, err = r.PreferredName(ctx, "U1")
	require.NoError(t, err)

	assert.Equal(t, 1, profiles.calls)
}

func TestPreferredName_DoesNotCacheEmptyResults(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{}}
	r := NewResolver(profiles, nil, nopLogger{})
	ctx := context.Background()

	name, err := r.PreferredName(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, name)

	// A later lookup retries the sources.
	profiles.names["U1"] = "jamie.k"
	name, err = r.PreferredName(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "jamie.k", name)
}

func TestPreferredName_NormalizesUserID(t *testing.T) {
	profiles := &fakeProfiles{names: map[string]string{"U123": "Jamie"}}
	r := NewResolver(profiles, nil, nopLogger{})

	name, err := r.PreferredName(context.Background(), "<@U123|jamie>")
	require.NoError(t, err)
	assert.Equal(t, "Jamie", name)
}

func TestPreferredName_EmptyAfterNormalization(t *testing.T) {
	profiles := &fakeProfiles{}
	r := NewResolver(profiles, nil, nopLogger{})

	name, err := r.PreferredName(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Equal(t, 0, profiles.calls)
}

func TestPreferredName_ProfileErrorPropagates(t *testing.T) {
	profiles := &fakeProfiles{err: errors.New("api down")}
	r := NewResolver(profiles, nil, nopLogger{})

	_, err := r.PreferredName(context.Background(), "U1")
	require.Error(t, err)
}

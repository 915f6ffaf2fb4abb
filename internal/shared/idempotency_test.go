package shared

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type keyPort struct {
	keys      map[string]bool
	deleteErr error
}

func (p *keyPort) CheckAndInsert(_ context.Context, key, module string) error {
	k := module + ":" + key
	if p.keys[k] {
		return ErrIdempotencyConflict
	}
	p.keys[k] = true
	return nil
}

func (p *keyPort) Delete(_ context.Context, key string) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.keys, key)
	return nil
}

func TestGuardReleasesKeyOnFailure(t *testing.T) {
	ctx := context.Background()
	port := &keyPort{keys: map[string]bool{}}

	release, err := Guard(ctx, nil, port, "k1", "sales")
	require.NoError(t, err)
	release(true)
	require.Empty(t, port.keys)

	release, err = Guard(ctx, nil, port, "k1", "sales")
	require.NoError(t, err)
	release(false)

	_, err = Guard(ctx, nil, port, "k1", "sales")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGuardLogsFailedRelease(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	port := &keyPort{keys: map[string]bool{}, deleteErr: errors.New("connection reset")}

	release, err := Guard(context.Background(), logger, port, "k2", "purchases")
	require.NoError(t, err)
	release(true)

	require.True(t, port.keys["purchases:k2"])
	out := buf.String()
	require.Contains(t, out, "release idempotency key")
	require.Contains(t, out, "key=k2")
	require.Contains(t, out, "module=purchases")
	require.Contains(t, out, "connection reset")
}

func TestGuardDisabledWithoutKey(t *testing.T) {
	release, err := Guard(context.Background(), nil, nil, "k3", "sales")
	require.NoError(t, err)
	release(true)

	port := &keyPort{keys: map[string]bool{}}
	release, err = Guard(context.Background(), nil, port, "", "sales")
	require.NoError(t, err)
	release(true)
	require.Empty(t, port.keys)
}

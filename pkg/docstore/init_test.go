package docstore_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

func TestInitializers_RunOnce_BeforeFirstValue(t *testing.T) {
	t.Parallel()

	var calls int

	store, path := openIntStore(t, func(o *docstore.Options[int]) {
		o.Initializers = []docstore.Initializer[int]{
			func(_ context.Context, api docstore.InitializerAPI[int]) error {
				calls++

				_, err := api.UpdateData(func(int) (int, error) { return 100, nil })

				return err
			},
		}
	})

	v, err := store.Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 100, v)

	// The rewrite happened before the value became observable.
	assert.Equal(t, 100, decodeIntFile(t, path))

	// Further messages must not re-run the initializer.
	_, err = store.Update(t.Context(), func(v int) (int, error) { return v + 1, nil })
	require.NoError(t, err)

	_, err = store.Get(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestInitializers_RunInOrder(t *testing.T) {
	t.Parallel()

	appendDigit := func(d int) docstore.Initializer[int] {
		return func(_ context.Context, api docstore.InitializerAPI[int]) error {
			_, err := api.UpdateData(func(v int) (int, error) { return v*10 + d, nil })

			return err
		}
	}

	store, _ := openIntStore(t, func(o *docstore.Options[int]) {
		o.Initializers = []docstore.Initializer[int]{appendDigit(1), appendDigit(2), appendDigit(3)}
	})

	v, err := store.Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 123, v)
}

func TestInitializers_NoOpRewrite_DoesNotCreateFile(t *testing.T) {
	t.Parallel()

	store, path := openIntStore(t, func(o *docstore.Options[int]) {
		o.Initializers = []docstore.Initializer[int]{
			func(_ context.Context, api docstore.InitializerAPI[int]) error {
				_, err := api.UpdateData(func(v int) (int, error) { return v, nil })

				return err
			},
		}
	})

	v, err := store.Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "persisting an unchanged value must be skipped")
}

func TestInitializers_Failure_RetriesFromStart(t *testing.T) {
	t.Parallel()

	var firstCalls, secondCalls int

	failOnce := errors.New("flaky bootstrap")

	store, _ := openIntStore(t, func(o *docstore.Options[int]) {
		o.Initializers = []docstore.Initializer[int]{
			func(_ context.Context, api docstore.InitializerAPI[int]) error {
				firstCalls++

				_, err := api.UpdateData(func(v int) (int, error) { return v + 1, nil })

				return err
			},
			func(_ context.Context, _ docstore.InitializerAPI[int]) error {
				secondCalls++

				if secondCalls == 1 {
					return failOnce
				}

				return nil
			},
		}
	})

	_, err := store.Get(t.Context())
	require.ErrorIs(t, err, failOnce)

	// The whole list re-runs on the next message.
	v, err := store.Get(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 2, firstCalls)
	assert.Equal(t, 2, secondCalls)

	// First initializer ran twice over the re-read value: 0+1 on the failed
	// cycle (persisted), then 1+1 on the retry.
	assert.Equal(t, 2, v)
}

func TestInitializerAPI_UseAfterInit_Fails(t *testing.T) {
	t.Parallel()

	var escaped docstore.InitializerAPI[int]

	store, _ := openIntStore(t, func(o *docstore.Options[int]) {
		o.Initializers = []docstore.Initializer[int]{
			func(_ context.Context, api docstore.InitializerAPI[int]) error {
				escaped = api

				return nil
			},
		}
	})

	_, err := store.Get(t.Context())
	require.NoError(t, err)

	_, err = escaped.UpdateData(func(v int) (int, error) { return v + 1, nil })
	require.ErrorIs(t, err, docstore.ErrAlreadyInitialized)
}

func TestInitializers_UpdateTriggersInit_ErrorReachesCaller(t *testing.T) {
	t.Parallel()

	bootErr := errors.New("bootstrap down")

	store, _ := openIntStore(t, func(o *docstore.Options[int]) {
		o.Initializers = []docstore.Initializer[int]{
			func(context.Context, docstore.InitializerAPI[int]) error {
				return bootErr
			},
		}
	})

	_, err := store.Update(t.Context(), func(v int) (int, error) { return v + 1, nil })
	require.ErrorIs(t, err, bootErr)
}

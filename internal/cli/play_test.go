package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlayFiles(t *testing.T) {
	errBroken := errors.New("broken")

	testCases := []struct {
		name           string
		results        map[string]error
		expectedErr    string
		expectedPlayed []string
	}{
		{
			name:           "all ok",
			results:        map[string]error{},
			expectedPlayed: []string{"a", "b", "c"},
		},
		{
			name:           "failure is skipped",
			results:        map[string]error{"a": errBroken},
			expectedErr:    "1 of 3 files failed",
			expectedPlayed: []string{"a", "b", "c"},
		},
		{
			name:           "cancel keeps earlier failures",
			results:        map[string]error{"a": errBroken, "b": context.Canceled},
			expectedErr:    "1 of 3 files failed",
			expectedPlayed: []string{"a", "b"},
		},
		{
			name:           "cancel without failures",
			results:        map[string]error{"a": context.Canceled},
			expectedPlayed: []string{"a"},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.name, func(t *testing.T) {
			stderr := &bytes.Buffer{}
			var played []string
			err := playFiles(context.Background(), stderr, []string{"a", "b", "c"}, func(ctx context.Context, path string) error {
				played = append(played, path)
				return tC.results[path]
			})
			require.Equal(t, tC.expectedPlayed, played)
			if tC.expectedErr == "" {
				require.NoError(t, err)
				require.Empty(t, stderr.String())
				return
			}
			require.EqualError(t, err, tC.expectedErr)
			require.Equal(t, "a: broken\n", stderr.String())
		})
	}
}

package errs

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsupportedFormatError(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("garment: %w", &UnsupportedFormatError{MIMEType: "image/avif", Err: image.ErrFormat})

	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.ErrorIs(t, err, image.ErrFormat)
	require.NotErrorIs(t, err, ErrValidation)

	var ufe *UnsupportedFormatError
	require.True(t, errors.As(err, &ufe))
	require.Equal(t, "image/avif", ufe.MIMEType)
	require.Contains(t, err.Error(), "image/avif")

	require.Contains(t, (&UnsupportedFormatError{}).Error(), "unknown")
}

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("pose is required for %s", "ai-model")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "validation: pose is required for ai-model", err.Error())
}

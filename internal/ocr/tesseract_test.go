package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	name   string
	args   []string
	stdout string
	err    error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	if s.err != nil {
		return nil, []byte("boom"), s.err
	}
	return []byte(s.stdout), nil, nil
}

func TestRecognize(t *testing.T) {
	r := &stubRunner{stdout: "Tropfpunkt: 110 °C\n|||||\nSäurezahl: 0.2\n"}
	e := NewEngine(Config{PSM: 6}, r)

	text, err := e.Recognize(context.Background(), "sheet.png")
	require.NoError(t, err)
	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"sheet.png", "stdout", "-l", "eng+deu", "--psm", "6"}, r.args)
	assert.Contains(t, text, "Tropfpunkt: 110 °C")
	assert.NotContains(t, text, "|||")
}

func TestRecognizeError(t *testing.T) {
	e := NewEngine(Config{Tesseract: "/opt/tess"}, &stubRunner{err: errors.New("exit 1")})
	_, err := e.Recognize(context.Background(), "sheet.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

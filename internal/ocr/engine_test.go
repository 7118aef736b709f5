package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
)

type fakeEngine struct {
	name     string
	priority int
	mimes    map[string]bool
}

func (f fakeEngine) Name() string               { return f.name }
func (f fakeEngine) Priority() int              { return f.priority }
func (f fakeEngine) Supports(mime string) bool  { return f.mimes[mime] }
func (f fakeEngine) Extract(context.Context, []byte, string, string) (Outcome, error) {
	return Outcome{Engine: f.name}, nil
}

func TestRegistry_SelectHighestPriority(t *testing.T) {
	baseline := fakeEngine{name: "baseline", priority: 0, mimes: map[string]bool{
		constants.MimePNG: true, constants.MimePDF: true,
	}}
	cloud := fakeEngine{name: "cloud", priority: 10, mimes: map[string]bool{
		constants.MimePDF: true,
	}}
	reg := NewRegistry(baseline, cloud)

	e, err := reg.Select(constants.MimePDF)
	require.NoError(t, err)
	assert.Equal(t, "cloud", e.Name())

	e, err = reg.Select(constants.MimePNG)
	require.NoError(t, err)
	assert.Equal(t, "baseline", e.Name())
}

func TestRegistry_SelectUnsupported(t *testing.T) {
	reg := NewRegistry(fakeEngine{name: "baseline", mimes: map[string]bool{constants.MimePNG: true}})

	_, err := reg.Select("application/msword")
	require.Error(t, err)
	assert.Equal(t, common.CodeUnsupportedFileType, common.ErrorCode(err))
}

func TestRegistry_Empty(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Select(constants.MimePNG)
	require.Error(t, err)
	assert.Equal(t, common.CodeUnsupportedFileType, common.ErrorCode(err))
}

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBeforeLexicographic(t *testing.T) {
	require.True(t, Read{Seconds: 1, Milliseconds: 999}.Before(Read{Seconds: 2, Milliseconds: 0}))
	require.True(t, Read{Seconds: 5, Milliseconds: 100}.Before(Read{Seconds: 5, Milliseconds: 200}))
	require.False(t, Read{Seconds: 5, Milliseconds: 200}.Before(Read{Seconds: 5, Milliseconds: 200}))
	require.False(t, Read{Seconds: 6, Milliseconds: 0}.Before(Read{Seconds: 5, Milliseconds: 999}))
}

func TestNewSyntheticParticipantUsesChipAsBib(t *testing.T) {
	p := NewSyntheticParticipant("ABC123")
	require.Equal(t, "ABC123", p.Chip)
	require.Equal(t, "ABC123", p.Bib)
	require.False(t, p.Anonymous)
}

func TestApiKindIsRemoteUploadTarget(t *testing.T) {
	require.True(t, ApiKindChronokeepRemote.IsRemoteUploadTarget())
	require.True(t, ApiKindChronokeepRemoteSelf.IsRemoteUploadTarget())
	require.False(t, ApiKindChronokeepCloud.IsRemoteUploadTarget())
	require.False(t, ApiKindChronokeepSelfHosted.IsRemoteUploadTarget())
}

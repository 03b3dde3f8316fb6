package release

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleReleases() []Release {
	return []Release{
		{
			Tag:         "v1.2.3",
			PublishedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			Assets: []Asset{
				{Name: "App-1.2.3.exe", DownloadURL: "https://example.com/new/App-1.2.3.exe"},
				{Name: "App%20Setup%201.2.3.exe", DownloadURL: "https://example.com/new/setup.exe"},
			},
		},
		{
			Tag:         "v1.2.2",
			PublishedAt: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
			Assets: []Asset{
				{Name: "App-1.2.2.exe", DownloadURL: "https://example.com/old/App-1.2.2.exe"},
				{Name: "App-1.2.3.exe", DownloadURL: "https://example.com/old/App-1.2.3.exe"},
			},
		},
	}
}

func TestFindAssetExactMatchPrefersFirstRelease(t *testing.T) {
	asset, rel, ok := FindAsset(sampleReleases(), "App-1.2.3.exe")
	require.True(t, ok)
	require.Equal(t, "v1.2.3", rel.Tag)
	require.Equal(t, "https://example.com/new/App-1.2.3.exe", asset.DownloadURL)
}

func TestFindAssetCaseInsensitive(t *testing.T) {
	asset, rel, ok := FindAsset(sampleReleases(), "app-1.2.2.EXE")
	require.True(t, ok)
	require.Equal(t, "v1.2.2", rel.Tag)
	require.Equal(t, "App-1.2.2.exe", asset.Name)
}

func TestFindAssetPercentDecoded(t *testing.T) {
	asset, _, ok := FindAsset(sampleReleases(), "App Setup 1.2.3.exe")
	require.True(t, ok)
	require.Equal(t, "https://example.com/new/setup.exe", asset.DownloadURL)
}

func TestFindAssetMissing(t *testing.T) {
	_, _, ok := FindAsset(sampleReleases(), "Other-9.9.9.exe")
	require.False(t, ok)

	_, _, ok = FindAsset(nil, "App-1.2.3.exe")
	require.False(t, ok)

	_, _, ok = FindAsset(sampleReleases(), "")
	require.False(t, ok)
}

func TestDisplayNameFallsBackToTag(t *testing.T) {
	require.Equal(t, "v1.0.0", Release{Tag: "v1.0.0"}.DisplayName())
	require.Equal(t, "Spring", Release{Tag: "v1.0.0", Name: "Spring"}.DisplayName())
}

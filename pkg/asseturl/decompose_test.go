package asseturl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetmigration/pkg/models"
)

func TestDecompose(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want models.AssetRef
	}{
		{
			name: "versioned image with nested folder",
			url:  "https://cdn.example/image/upload/v1690000000/products/abc/photo.jpg",
			want: models.AssetRef{
				SourceURL:    "https://cdn.example/image/upload/v1690000000/products/abc/photo.jpg",
				PublicID:     "products/abc/photo",
				Folder:       "products/abc",
				ResourceType: models.ResourceImage,
				Format:       "jpg",
				Filename:     "photo.jpg",
			},
		},
		{
			name: "no folder",
			url:  "https://cdn.example/image/upload/v12345/banner.png",
			want: models.AssetRef{
				SourceURL:    "https://cdn.example/image/upload/v12345/banner.png",
				PublicID:     "banner",
				ResourceType: models.ResourceImage,
				Format:       "png",
				Filename:     "banner.png",
			},
		},
		{
			name: "no version segment",
			url:  "https://cdn.example/video/upload/clips/intro.mp4",
			want: models.AssetRef{
				SourceURL:    "https://cdn.example/video/upload/clips/intro.mp4",
				PublicID:     "clips/intro",
				Folder:       "clips",
				ResourceType: models.ResourceVideo,
				Format:       "mp4",
				Filename:     "intro.mp4",
			},
		},
		{
			name: "no extension",
			url:  "https://cdn.example/raw/upload/v1/exports/report",
			want: models.AssetRef{
				SourceURL:    "https://cdn.example/raw/upload/v1/exports/report",
				PublicID:     "exports/report",
				Folder:       "exports",
				ResourceType: models.ResourceRaw,
				Format:       "",
				Filename:     "report",
			},
		},
		{
			name: "account segment before type marker",
			url:  "https://media.example.com/old-account/image/fetch/v99/avatars/u42.webp",
			want: models.AssetRef{
				SourceURL:    "https://media.example.com/old-account/image/fetch/v99/avatars/u42.webp",
				PublicID:     "avatars/u42",
				Folder:       "avatars",
				ResourceType: models.ResourceImage,
				Format:       "webp",
				Filename:     "u42.webp",
			},
		},
		{
			name: "dotfile-style name keeps extension split only past first rune",
			url:  "https://cdn.example/raw/upload/v1/backups/.htaccess",
			want: models.AssetRef{
				SourceURL:    "https://cdn.example/raw/upload/v1/backups/.htaccess",
				PublicID:     "backups/.htaccess",
				Folder:       "backups",
				ResourceType: models.ResourceRaw,
				Format:       "",
				Filename:     ".htaccess",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompose(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecomposeDeterministic(t *testing.T) {
	url := "https://cdn.example/image/upload/v1690000000/products/abc/photo.jpg"

	first, err := Decompose(url)
	require.NoError(t, err)
	second, err := Decompose(url)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecomposeErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no resource type marker", "https://cdn.example/files/photo.jpg"},
		{"nothing after delivery mode", "https://cdn.example/image/upload"},
		{"only version after delivery mode", "https://cdn.example/image/upload/v123"},
		{"type marker is last segment", "https://cdn.example/some/path/image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompose(tt.url)
			require.Error(t, err)

			var decomposeErr *DecomposeError
			assert.ErrorAs(t, err, &decomposeErr)
		})
	}
}

// Package asseturl decomposes storage delivery URLs into structured asset
// references. Decomposition is pure: the same URL always yields the same ref.
package asseturl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"assetmigration/pkg/models"
)

// DecomposeError marks a URL that cannot be mapped to an asset reference.
// It is permanent: callers record it as a per-item failure and never retry.
type DecomposeError struct {
	URL    string
	Reason string
}

func (e *DecomposeError) Error() string {
	return fmt.Sprintf("cannot decompose %q: %s", e.URL, e.Reason)
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// Decompose parses a delivery URL into an AssetRef. The path must contain a
// resource-type marker segment (image/video/raw) followed by a delivery-mode
// segment; everything after those is the upload path. A leading v<digits>
// segment is a version tag and is dropped from the identifier.
func Decompose(rawURL string) (models.AssetRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.AssetRef{}, &DecomposeError{URL: rawURL, Reason: "not a valid URL"}
	}

	segments := splitPath(u.Path)

	typeIdx := -1
	var resourceType models.ResourceType
	for i, seg := range segments {
		switch models.ResourceType(seg) {
		case models.ResourceImage, models.ResourceVideo, models.ResourceRaw:
			resourceType = models.ResourceType(seg)
			typeIdx = i
		}
		if typeIdx >= 0 {
			break
		}
	}
	if typeIdx < 0 {
		return models.AssetRef{}, &DecomposeError{URL: rawURL, Reason: "no resource type segment"}
	}

	// Skip the type segment and the delivery-mode segment after it.
	uploadPath := segments[min(typeIdx+2, len(segments)):]

	if len(uploadPath) > 0 && versionSegment.MatchString(uploadPath[0]) {
		uploadPath = uploadPath[1:]
	}
	if len(uploadPath) == 0 {
		return models.AssetRef{}, &DecomposeError{URL: rawURL, Reason: "empty upload path"}
	}

	filename := uploadPath[len(uploadPath)-1]
	folder := strings.Join(uploadPath[:len(uploadPath)-1], "/")

	bareName := filename
	format := ""
	if dot := strings.LastIndex(filename, "."); dot > 0 {
		bareName = filename[:dot]
		format = filename[dot+1:]
	}

	publicID := bareName
	if folder != "" {
		publicID = folder + "/" + bareName
	}

	return models.AssetRef{
		SourceURL:    rawURL,
		PublicID:     publicID,
		Folder:       folder,
		ResourceType: resourceType,
		Format:       format,
		Filename:     filename,
	}, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

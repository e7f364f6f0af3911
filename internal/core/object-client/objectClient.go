package objectclient

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// ObjectKey builds the storage key for an uploaded file:
// <root>/<userID>/<unixMillis>_<name>.
func ObjectKey(root, userID string, at time.Time, name string) string {
	return path.Join(root, userID, fmt.Sprintf("%d_%s", at.UnixMilli(), path.Base(name)))
}

// PublicURL is the virtual-hosted style URL of an object. Each key segment
// is path-escaped, so names with spaces, '#' or '?' stay inside the path.
func PublicURL(bucket, region, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, strings.Join(segs, "/"))
}

// ParseS3URL extracts the bucket and key from a virtual-hosted style S3 URL.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
// The returned key is unescaped.
func ParseS3URL(raw string) (bucket, key string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return "", ""
	}
	host := u.Host
	if !strings.Contains(host, ".s3.") || !strings.HasSuffix(host, ".amazonaws.com") {
		return "", ""
	}
	bucket = host[:strings.Index(host, ".s3.")]
	return bucket, strings.TrimPrefix(u.Path, "/")
}

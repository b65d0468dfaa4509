package imagepool

import (
	"net/url"
	"regexp"
	"strings"
)

var driveFilePath = regexp.MustCompile(`^/file/d/([^/]+)`)

// Normalize rewrites share links into directly loadable image URLs.
// Dropbox share pages become dl.dropboxusercontent.com links with dl=1, and
// Google Drive file or open links become uc?export=view links. Anything else
// is returned trimmed but otherwise unchanged.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Host)
	switch {
	case host == "dropbox.com" || host == "www.dropbox.com" || host == "dl.dropboxusercontent.com":
		u.Scheme = "https"
		u.Host = "dl.dropboxusercontent.com"
		q := u.Query()
		q.Del("raw")
		q.Set("dl", "1")
		u.RawQuery = q.Encode()
		return u.String()

	case host == "drive.google.com":
		if m := driveFilePath.FindStringSubmatch(u.Path); m != nil {
			return driveView(m[1])
		}
		if u.Path == "/open" || u.Path == "/uc" {
			if id := u.Query().Get("id"); id != "" {
				return driveView(id)
			}
		}
	}
	return raw
}

func driveView(id string) string {
	return "https://drive.google.com/uc?export=view&id=" + url.QueryEscape(id)
}

package utils

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`^(https?|ftp)://[^\s/$.?#].[^\s]*$`)

// IsURL returns true if the given string appears to be a URL
func IsURL(str string) bool {
	str = strings.ToLower(str)
	if strings.HasPrefix(str, "http://") || strings.HasPrefix(str, "https://") {
		return true
	}

	return urlPattern.MatchString(str)
}

// IsS3URI reports whether str points to an object as s3://bucket/key.
func IsS3URI(str string) bool {
	return strings.HasPrefix(strings.ToLower(str), "s3://")
}

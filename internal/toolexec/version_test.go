package toolexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"sphinx-build 7.2.6\n":               "7.2.6",
		"Python 3.12.1":                      "3.12.1",
		"pandoc 3.1.11.1\nFeatures: +server": "3.1.11",
		"pip 24.0 from /usr/lib/python3":     "24.0",
		"tool v1.4.0-rc1":                    "1.4.0",
		"unknown\nsecond":                    "unknown",
		"":                                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseVersion(in), in)
	}
}

func TestDetectMissingTool(t *testing.T) {
	info := Detect(context.Background(), "docpipe-definitely-not-installed")
	assert.False(t, info.Found)
	assert.Empty(t, info.Path)
}

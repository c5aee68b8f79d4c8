package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownQuality is returned for quality values outside the supported set.
var ErrUnknownQuality = errors.New("unknown quality")

// Quality is the output resolution requested for a render.
type Quality string

const (
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality2160p Quality = "2160p"
)

// Qualities lists every supported value, lowest first.
var Qualities = []Quality{Quality480p, Quality720p, Quality1080p, Quality2160p}

// qualityFlags must stay in lockstep with manim's -q presets.
var qualityFlags = map[Quality]string{
	Quality480p:  "-ql",
	Quality720p:  "-qm",
	Quality1080p: "-qh",
	Quality2160p: "-qk",
}

// qualityFolders is the directory manim writes each preset's videos into.
var qualityFolders = map[Quality]string{
	Quality480p:  "480p15",
	Quality720p:  "720p30",
	Quality1080p: "1080p60",
	Quality2160p: "2160p60",
}

// ParseQuality normalizes user input into a Quality.
func ParseQuality(raw string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := qualityFlags[q]; !ok {
		return "", fmt.Errorf("%w %q (expected one of %s)", ErrUnknownQuality, raw, strings.Join(QualityNames(), ", "))
	}
	return q, nil
}

// QualityNames returns the supported values as strings.
func QualityNames() []string {
	out := make([]string, 0, len(Qualities))
	for _, q := range Qualities {
		out = append(out, string(q))
	}
	return out
}

// Flag returns the renderer command-line flag for q.
func (q Quality) Flag() (string, error) {
	flag, ok := qualityFlags[q]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownQuality, string(q))
	}
	return flag, nil
}

// Folder returns the renderer output subdirectory name for q.
func (q Quality) Folder() (string, error) {
	folder, ok := qualityFolders[q]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownQuality, string(q))
	}
	return folder, nil
}

func (q Quality) String() string {
	return string(q)
}

package models

import (
	"errors"
	"testing"
)

func TestQualityTablesTotalAndInjective(t *testing.T) {
	flags := map[string]Quality{}
	folders := map[string]Quality{}
	for _, q := range Qualities {
		flag, err := q.Flag()
		if err != nil {
			t.Fatalf("quality %s has no flag: %v", q, err)
		}
		folder, err := q.Folder()
		if err != nil {
			t.Fatalf("quality %s has no folder: %v", q, err)
		}
		if prev, dup := flags[flag]; dup {
			t.Fatalf("flag %s shared by %s and %s", flag, prev, q)
		}
		if prev, dup := folders[folder]; dup {
			t.Fatalf("folder %s shared by %s and %s", folder, prev, q)
		}
		flags[flag] = q
		folders[folder] = q
	}
	if len(qualityFlags) != len(Qualities) || len(qualityFolders) != len(Qualities) {
		t.Fatalf("lookup tables out of sync with Qualities: flags=%d folders=%d qualities=%d",
			len(qualityFlags), len(qualityFolders), len(Qualities))
	}
}

func TestQualityMapping(t *testing.T) {
	cases := []struct {
		q      Quality
		flag   string
		folder string
	}{
		{Quality480p, "-ql", "480p15"},
		{Quality720p, "-qm", "720p30"},
		{Quality1080p, "-qh", "1080p60"},
		{Quality2160p, "-qk", "2160p60"},
	}
	for _, tc := range cases {
		flag, _ := tc.q.Flag()
		folder, _ := tc.q.Folder()
		if flag != tc.flag || folder != tc.folder {
			t.Fatalf("%s: got flag=%s folder=%s want %s %s", tc.q, flag, folder, tc.flag, tc.folder)
		}
	}
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality(" 1080P ")
	if err != nil || q != Quality1080p {
		t.Fatalf("expected 1080p got %q err=%v", q, err)
	}
	if _, err := ParseQuality("4k"); !errors.Is(err, ErrUnknownQuality) {
		t.Fatalf("expected ErrUnknownQuality, got %v", err)
	}
	if _, err := Quality("360p").Flag(); !errors.Is(err, ErrUnknownQuality) {
		t.Fatalf("expected ErrUnknownQuality for unmapped flag, got %v", err)
	}
}

func TestJobPlanSetOnce(t *testing.T) {
	job := NewJob("job-1", "draw a circle", Quality480p)
	if err := job.SetPlan("Animation Plan:\n1. Create a Circle."); err != nil {
		t.Fatalf("set plan: %v", err)
	}
	if err := job.SetPlan("something else"); !errors.Is(err, ErrPlanAlreadySet) {
		t.Fatalf("expected ErrPlanAlreadySet, got %v", err)
	}
	if job.Plan() != "Animation Plan:\n1. Create a Circle." {
		t.Fatalf("plan changed: %q", job.Plan())
	}
}

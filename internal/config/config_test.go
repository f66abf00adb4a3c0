package config

import (
	"testing"
)

func TestParseUserPolicy(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"never", "always", "missing"} {
		p, err := ParseUserPolicy(valid)
		if err != nil {
			t.Errorf("ParseUserPolicy(%q): %v", valid, err)
		}
		if string(p) != valid {
			t.Errorf("ParseUserPolicy(%q) = %q", valid, p)
		}
	}
	for _, invalid := range []string{"", "sometimes", "NEVER"} {
		if _, err := ParseUserPolicy(invalid); err == nil {
			t.Errorf("ParseUserPolicy(%q) accepted", invalid)
		}
	}
}

func TestAttachmentPatterns(t *testing.T) {
	t.Parallel()

	t.Run("empty include admits everything", func(t *testing.T) {
		t.Parallel()
		p := &AttachmentPatterns{}
		if err := p.compile("test"); err != nil {
			t.Fatalf("compile: %v", err)
		}
		if !p.Allows("anything.bin") {
			t.Error("empty patterns must admit every file")
		}
	})

	t.Run("include filters", func(t *testing.T) {
		t.Parallel()
		p := &AttachmentPatterns{Include: []string{`\.log$`, `\.txt$`}}
		if err := p.compile("test"); err != nil {
			t.Fatalf("compile: %v", err)
		}
		if !p.Allows("run.log") || !p.Allows("notes.txt") {
			t.Error("included extensions rejected")
		}
		if p.Allows("core.dmp") {
			t.Error("unlisted extension admitted")
		}
	})

	t.Run("exclude wins over include", func(t *testing.T) {
		t.Parallel()
		p := &AttachmentPatterns{Include: []string{`\.log$`}, Exclude: []string{`^secret`}}
		if err := p.compile("test"); err != nil {
			t.Fatalf("compile: %v", err)
		}
		if !p.Allows("run.log") {
			t.Error("plain log rejected")
		}
		if p.Allows("secret.log") {
			t.Error("excluded file admitted despite include match")
		}
	})

	t.Run("invalid expression", func(t *testing.T) {
		t.Parallel()
		p := &AttachmentPatterns{Include: []string{`[`}}
		if err := p.compile("test"); err == nil {
			t.Error("invalid regexp accepted")
		}
	})
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	c := &Config{CustomStatuses: map[string]string{"OK": "PASSED", "NOK": "FAILED"}}
	if got := c.MapStatus("OK"); got != "PASSED" {
		t.Errorf("MapStatus(OK) = %q, want PASSED", got)
	}
	if got := c.MapStatus("IDLE"); got != "IDLE" {
		t.Errorf("MapStatus(IDLE) = %q, unmapped names must pass through", got)
	}
}

package artifact

import "testing"

func TestFileNameUsesBaseAndVersion(t *testing.T) {
	d, err := New("mc-remote", "McRemote", Version{MC: "1.21.4", Plugin: "1.0.5"}, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := d.FileName(); got != "mc-remote-1.21.4-1.0.5.jar" {
		t.Fatalf("file name=%q", got)
	}
	if got := d.RemoteGlob(); got != "mc-remote*.jar" {
		t.Fatalf("remote glob=%q", got)
	}
}

func TestNewRequiresVersionComponents(t *testing.T) {
	if _, err := New("mc-remote", "", Version{MC: "1.21.4"}, "jar"); err == nil {
		t.Fatalf("expected error for missing plugin version")
	}
	if _, err := New("", "", Version{MC: "1", Plugin: "2"}, "jar"); err == nil {
		t.Fatalf("expected error for missing base name")
	}
}

func TestStalePattern(t *testing.T) {
	d, err := New("mc-remote", "McRemote", Version{MC: "1.21.4", Plugin: "1.0.5"}, "jar")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	re := d.StalePattern()
	cases := map[string]bool{
		"mc-remote-1.21.4-1.0.4.jar": true,
		"MC-REMOTE-old.JAR":          true,
		"McRemote":                   true,
		"mcremote-data":              true,
		"mc-remote-notes.txt":        false,
		"other-plugin.jar":           false,
		"paper.jar":                  false,
		d.FileName():                 true,
	}
	for name, want := range cases {
		if got := re.MatchString(name); got != want {
			t.Errorf("match(%q)=%v, want %v", name, got, want)
		}
	}
}

func TestStalePatternWithoutLegacyName(t *testing.T) {
	d, err := New("plugin", "", Version{MC: "1", Plugin: "1"}, "jar")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if d.StalePattern().MatchString("PluginName-old") {
		t.Fatalf("legacy form should not match without a legacy name")
	}
}

func TestVersionString(t *testing.T) {
	if got := (Version{MC: "1.21.4", Plugin: "1.0.5"}).String(); got != "1.21.4-1.0.5" {
		t.Fatalf("version=%q", got)
	}
	if got := (Version{Plugin: "1.1"}).String(); got != "1.1" {
		t.Fatalf("version=%q", got)
	}
}

package xbprep

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type splitOptionsTest struct {
	s      string
	result [][2]string
}

func TestSplitOptions(t *testing.T) {
	tests := []splitOptionsTest{
		{s: "", result: [][2]string{}},
		{s: "a", result: [][2]string{{"A", "true"}}},
		{s: "a=1", result: [][2]string{{"A", "1"}}},
		{s: "a=1,b=2,c=3", result: [][2]string{{"A", "1"}, {"B", "2"}, {"C", "3"}}},
		{s: "a=1,@b=2,c=3", result: [][2]string{{"A", "1"}, {"@B", "2"}, {"C", "3"}}},
		{s: "a=1,@b=2,c=3,@b=4", result: [][2]string{{"A", "1"}, {"@B", "2"}, {"C", "3"}, {"@B", "4"}}},
		{s: "a=1,b,c=3", result: [][2]string{{"A", "1"}, {"B", "true"}, {"C", "3"}}},
		{s: "a=1,,c=3", result: [][2]string{{"A", "1"}, {"C", "3"}}},
		{s: "use-memory=1G", result: [][2]string{{"UseMemory", "1G"}}},
		{s: "command=sudo xtrabackup", result: [][2]string{{"Command", "sudo xtrabackup"}}},
		{s: "a=x=y", result: [][2]string{{"A", "x=y"}}},
		{s: "a=1\\,b=2,c=3", result: [][2]string{{"A", "1,b=2"}, {"C", "3"}}},
		{s: "a=1\\\\\\,b=2,c=3", result: [][2]string{{"A", "1\\,b=2"}, {"C", "3"}}},
		{s: "a=1\\\\,b=2,c=3", result: [][2]string{{"A", "1\\"}, {"B", "2"}, {"C", "3"}}},
		{s: "a=1\\0,b=2,c=3", result: [][2]string{{"A", "1\\0"}, {"B", "2"}, {"C", "3"}}},
		{s: "a=1,b=2\\", result: [][2]string{{"A", "1"}, {"B", "2\\"}}},
	}

	for _, test := range tests {
		result := SplitOptions(test.s)
		if !reflect.DeepEqual(result, test.result) {
			t.Errorf("does not match: %v %v (from %v)", test.result, result, test.s)
		}
	}
}

func TestEvalOptions(t *testing.T) {
	presets := map[string][]KeyValuePair{
		"percona":   {{"Type", "xtrabackup"}, {"Command", "sudo -u mysql {{.Binary}}"}},
		"mariadb":   {{"Preset", "percona"}, {"Type", "mariabackup"}},
		"big-host":  {{"UseMemory", "{{.Memory | upper}}"}},
		"s3-upload": {{"Type", "object-storage"}, {"Prefix", "{{.Host}}/"}},
	}

	options := []KeyValuePair{
		{"Binary", "mariabackup"},
		{"Memory", "4g"},
		{"Preset", "mariadb"},
		{"Preset", "big-host"},
		{"Preset", "missing"},
		{"@Env", "A=1"},
		{"@Env", "B=2"},
	}

	result, err := EvalOptions(options, presets)
	if err != nil {
		t.Fatal(err)
	}

	expected := &Options{
		String: map[string]string{
			"Binary":    "mariabackup",
			"Memory":    "4g",
			"Type":      "mariabackup",
			"Command":   "sudo -u mysql mariabackup",
			"UseMemory": "4G",
		},
		StrSlice: map[string][]string{
			"Env": {"A=1", "B=2"},
		},
	}

	if !reflect.DeepEqual(expected, result) {
		t.Errorf("result: %v ; expected: %v", result, expected)
	}

	if cmd := result.GetCommand("Command", nil); !reflect.DeepEqual(cmd, []string{"sudo", "-u", "mysql", "mariabackup"}) {
		t.Errorf("unexpected command: %v", cmd)
	}
}

func TestEvalOptionsRecursivePreset(t *testing.T) {
	presets := map[string][]KeyValuePair{
		"loop": {{"Preset", "loop"}},
	}

	if _, err := EvalOptions([]KeyValuePair{{"Preset", "loop"}}, presets); err == nil {
		t.Error("expected an error for a recursive preset")
	}
}

func TestOptionsGetters(t *testing.T) {
	options, err := ParseOptions("redo=yes,plain=0,bad=maybe,@command=sudo,@command=innobackupex", nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		key      string
		defaults bool
		result   bool
		err      bool
	}{
		{key: "Redo", result: true},
		{key: "Plain", defaults: true, result: false},
		{key: "Missing", defaults: true, result: true},
		{key: "Bad", err: true},
	} {
		result, err := options.GetBoolean(test.key, test.defaults)
		if (err != nil) != test.err {
			t.Errorf("%s: unexpected error: %v", test.key, err)
		} else if result != test.result {
			t.Errorf("%s: expected %v, got %v", test.key, test.result, result)
		}
	}

	if cmd := options.GetCommand("Command", nil); !reflect.DeepEqual(cmd, []string{"sudo", "innobackupex"}) {
		t.Errorf("unexpected command: %v", cmd)
	}
	if cmd := options.GetCommand("Other", []string{"xtrabackup"}); !reflect.DeepEqual(cmd, []string{"xtrabackup"}) {
		t.Errorf("unexpected default command: %v", cmd)
	}
	if s := options.GetString("Missing", "default"); s != "default" {
		t.Errorf("unexpected default string: %v", s)
	}
}

func TestReadPresets(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"percona.json": `[["Type", "xtrabackup"], ["UseMemory", "1G"]]`,
		"broken.json":  `{`,
		"notes.txt":    `ignored`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	presets, err := ReadPresets(dir)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string][]KeyValuePair{
		"percona": {{"Type", "xtrabackup"}, {"UseMemory", "1G"}},
	}
	if !reflect.DeepEqual(expected, presets) {
		t.Errorf("result: %v ; expected: %v", presets, expected)
	}

	presets, err = ReadPresets(filepath.Join(dir, "missing"))
	if err != nil || presets != nil {
		t.Errorf("expected no presets and no error for a missing directory, got %v, %v", presets, err)
	}
}

func TestDefaultPresetsDir(t *testing.T) {
	if dir := DefaultPresetsDir("0", "/root"); dir != "/etc/xbprep/presets" {
		t.Errorf("unexpected root presets dir: %s", dir)
	}
	if dir := DefaultPresetsDir("1000", "/home/alice"); dir != "/home/alice/.config/xbprep/presets" {
		t.Errorf("unexpected user presets dir: %s", dir)
	}
}

package xbprep

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/gobuffalo/flect"
	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

type KeyValuePair = [2]string

// Parsed and evaluated options of a tool or a destination, for example
// "type=xtrabackup,command=sudo xtrabackup,use-memory=1G"
type Options struct {
	// All normal (non-"@"-prefixed) options
	String map[string]string

	// All multi-valued ("@"-prefixed) options
	// Keys have their "@" prefix stripped
	StrSlice map[string][]string
}

func NewOptions() *Options {
	return &Options{
		String:   make(map[string]string),
		StrSlice: make(map[string][]string),
	}
}

// Template context: normal options by name, multi-valued options by "@" + name
func (o *Options) templateData() map[string]interface{} {
	res := make(map[string]interface{}, len(o.String)+len(o.StrSlice))
	for k, v := range o.String {
		res[k] = v
	}
	for k, v := range o.StrSlice {
		res["@"+k] = v
	}
	return res
}

// Get a command line. The option can either be given multiple times (@Command=sudo,@Command=xtrabackup)
// or once, in which case it is split following shell syntax (Command=sudo xtrabackup)
func (o *Options) GetCommand(key string, defaults []string) []string {
	if ss, ok := o.StrSlice[key]; ok {
		return ss
	}

	if s, ok := o.String[key]; ok {
		res, err := shlex.Split(s)
		if err != nil {
			logrus.Warnf("cannot parse %s: %s", key, err)
		} else {
			return res
		}
	}

	return defaults
}

func (o *Options) GetBoolean(key string, defaults bool) (bool, error) {
	s, ok := o.String[key]
	if !ok {
		return defaults, nil
	}

	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean for %s: %s", key, s)
	}
}

func (o *Options) GetString(key string, defaults string) string {
	if s, ok := o.String[key]; ok {
		return s
	}
	return defaults
}

// Turn "key=value" into its normalized key ("use-memory" -> "UseMemory", "@command" -> "@Command")
// and its value. A key without value is a boolean flag set to "true".
func parseOption(option string) (string, string) {
	k, v, hasValue := strings.Cut(option, "=")
	if !hasValue {
		v = "true"
	}

	prefix := ""
	if strings.HasPrefix(k, "@") {
		prefix, k = "@", k[1:]
	}
	if k == "" {
		return "", ""
	}

	return prefix + flect.Pascalize(k), v
}

// Split an option line into key-value pairs. Pairs are separated by commas;
// "\," is a literal comma and "\\" a literal backslash.
func SplitOptions(options string) []KeyValuePair {
	result := make([]KeyValuePair, 0)
	var current strings.Builder

	flush := func() {
		if k, v := parseOption(current.String()); k != "" {
			result = append(result, KeyValuePair{k, v})
		}
		current.Reset()
	}

	for i := 0; i < len(options); i++ {
		c := options[i]
		switch {
		case c == '\\' && i+1 < len(options) && (options[i+1] == ',' || options[i+1] == '\\'):
			current.WriteByte(options[i+1])
			i++
		case c == ',':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return result
}

// Default location of presets: /etc/xbprep/presets for root, ~/.config/xbprep/presets otherwise
func DefaultPresetsDir(uid, homeDir string) string {
	if uid == "0" {
		return filepath.Join("/etc", "xbprep", "presets")
	}
	return filepath.Join(homeDir, ".config", "xbprep", "presets")
}

// Load presets from a directory. Each preset is a JSON file containing a list of key-value pairs.
func ReadPresets(presetsDir string) (map[string][]KeyValuePair, error) {
	entries, err := os.ReadDir(presetsDir)
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	presets := make(map[string][]KeyValuePair)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(presetsDir, entry.Name()))
		if err != nil {
			logrus.Warn(err)
			continue
		}

		var options []KeyValuePair
		if err = json.Unmarshal(data, &options); err != nil {
			logrus.WithFields(logrus.Fields{"preset": entry.Name()}).Warnf("invalid preset: %v", err)
			continue
		}

		presets[strings.TrimSuffix(entry.Name(), ".json")] = options
	}

	return presets, nil
}

func evalValue(result *Options, k, v string) string {
	tpl, err := template.New(k).Funcs(sprig.TxtFuncMap()).Parse(v)
	if err != nil {
		logrus.Warnf("failed to evaluate %v: %v", k, err)
		return v
	}

	buf := bytes.NewBuffer(nil)
	if err = tpl.Execute(buf, result.templateData()); err != nil {
		logrus.Warnf("failed to evaluate %v: %v", k, err)
		return v
	}

	return buf.String()
}

func evalOptions(result *Options, kvs []KeyValuePair, presets map[string][]KeyValuePair, depth int) error {
	if depth > 16 {
		return fmt.Errorf("presets nested too deeply")
	}

	for _, kv := range kvs {
		k := kv[0]
		v := evalValue(result, k, kv[1])

		switch {
		case k == "Preset":
			presetOptions, ok := presets[v]
			if !ok {
				logrus.Warnf("preset %s not found", v)
				continue
			}
			if err := evalOptions(result, presetOptions, presets, depth+1); err != nil {
				return err
			}
		case strings.HasPrefix(k, "@"):
			result.StrSlice[k[1:]] = append(result.StrSlice[k[1:]], v)
		default:
			result.String[k] = v
		}
	}

	return nil
}

// Evaluate raw key-value pairs: values are evaluated as templates (with sprig functions)
// against the options already evaluated, and "preset=name" pulls the options of a preset
func EvalOptions(kvs []KeyValuePair, presets map[string][]KeyValuePair) (*Options, error) {
	options := NewOptions()
	if err := evalOptions(options, kvs, presets, 0); err != nil {
		return nil, err
	}
	return options, nil
}

// Shorthand for EvalOptions(SplitOptions(line), presets)
func ParseOptions(line string, presets map[string][]KeyValuePair) (*Options, error) {
	return EvalOptions(SplitOptions(line), presets)
}
